package inmemdb

import (
	"context"
	"strings"

	"github.com/trezcool/preschool/core"
	"github.com/trezcool/preschool/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db}
}

func cloneUser(usr user.User) user.User {
	usr.Roles = copyStrings(usr.Roles)
	usr.Classes = copyStrings(usr.Classes)
	if usr.IsActive != nil {
		usr.SetActive(*usr.IsActive)
	} else {
		usr.SetActive(true)
	}
	return usr
}

func isExcluded(usr user.User, excludedUsers []user.User) bool {
	for _, excl := range excludedUsers {
		if excl.ID == usr.ID {
			return true
		}
	}
	return false
}

// conflict returns the uniqueness error of `usr` against the stored users, ignoring itself.
func (repo *userRepository) conflict(usr user.User) error {
	for _, u := range repo.db.users {
		if u.ID == usr.ID {
			continue
		}
		if (usr.Username != "" && u.Username == usr.Username) || (usr.Email != "" && u.Email == usr.Email) {
			return user.ErrUserExists
		}
	}
	return nil
}

func (repo *userRepository) CheckUsernameUniqueness(_ context.Context, username, email string, excludedUsers ...user.User) error {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, usr := range repo.db.users {
		if isExcluded(usr, excludedUsers) {
			continue
		}
		if username != "" && usr.Username == username {
			return user.ErrUsernameExists
		}
		if email != "" && usr.Email == email {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	return repo.create(usr)
}

func (repo *userRepository) create(usr user.User) (user.User, error) {
	if usr.ID == "" {
		usr.ID = newID()
	}
	if err := repo.conflict(usr); err != nil {
		return user.User{}, err
	}
	usr = cloneUser(usr)
	repo.db.users[usr.ID] = usr
	return cloneUser(usr), nil
}

func (repo *userRepository) QueryUsers(_ context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	users := make([]user.User, 0, len(repo.db.users))
	for _, usr := range repo.db.users {
		if filter == nil || matchUser(usr, filter) {
			users = append(users, cloneUser(usr))
		}
	}
	sortRecords(users, cmpUsers, ordering, core.DBOrdering{Field: "created_at"})
	return users, nil
}

func matchUser(usr user.User, filter *user.QueryFilter) bool {
	if filter.Search != "" &&
		!(containsFold(usr.Name, filter.Search) || containsFold(usr.Username, filter.Search) || containsFold(usr.Email, filter.Search)) {
		return false
	}
	if len(filter.Roles) > 0 {
		var found bool
		for _, role := range filter.Roles {
			if usr.RoleStartsWith(role) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(filter.Classes) > 0 {
		var found bool
		for _, class := range filter.Classes {
			if core.StringInSlice(class, usr.Classes) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.IsActive != nil && usr.Active() != *filter.IsActive {
		return false
	}
	if !filter.CreatedFrom.IsZero() && usr.CreatedAt.Before(filter.CreatedFrom.Time) {
		return false
	}
	if !filter.CreatedTo.IsZero() && !usr.CreatedAt.Before(filter.CreatedTo.AddDays(1).Time) {
		return false
	}
	return true
}

func cmpUsers(a, b user.User, field string) int {
	switch field {
	case "id":
		return strings.Compare(a.ID, b.ID)
	case "name":
		return cmpStrings(a.Name, b.Name)
	case "username":
		return cmpStrings(a.Username, b.Username)
	case "email":
		return cmpStrings(a.Email, b.Email)
	case "created_at":
		return cmpTimes(a.CreatedAt, b.CreatedAt)
	case "updated_at":
		return cmpTimes(a.UpdatedAt, b.UpdatedAt)
	case "last_login":
		return cmpTimes(a.LastLogin, b.LastLogin)
	}
	return 0
}

func (repo *userRepository) GetUser(_ context.Context, filter user.GetFilter) (user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return repo.get(filter)
}

func (repo *userRepository) get(filter user.GetFilter) (user.User, error) {
	if filter.ID != "" {
		if usr, ok := repo.db.users[filter.ID]; ok {
			return cloneUser(usr), nil
		}
		return user.User{}, user.ErrNotFound
	}
	for _, usr := range repo.db.users {
		switch {
		case filter.Username != "":
			if usr.Username == filter.Username {
				return cloneUser(usr), nil
			}
		case filter.Email != "":
			if usr.Email == filter.Email {
				return cloneUser(usr), nil
			}
		case filter.UsernameOrEmail != "":
			if usr.Username == filter.UsernameOrEmail || usr.Email == filter.UsernameOrEmail {
				return cloneUser(usr), nil
			}
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	return repo.update(usr)
}

func (repo *userRepository) update(usr user.User) (user.User, error) {
	if _, ok := repo.db.users[usr.ID]; !ok {
		return user.User{}, user.ErrNotFound
	}
	if err := repo.conflict(usr); err != nil {
		return user.User{}, err
	}
	usr = cloneUser(usr)
	repo.db.users[usr.ID] = usr
	return cloneUser(usr), nil
}

// UpdateOrCreateUser updates the user with the same username or email as `usr`, or creates it.
func (repo *userRepository) UpdateOrCreateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	var existing user.User
	err := user.ErrNotFound
	if usr.Username != "" {
		existing, err = repo.get(user.GetFilter{Username: usr.Username})
	}
	if err == user.ErrNotFound && usr.Email != "" {
		existing, err = repo.get(user.GetFilter{Email: usr.Email})
	}
	if err == nil {
		usr.ID = existing.ID
		usr.CreatedAt = existing.CreatedAt
		return repo.update(usr)
	}
	usr.ID = ""
	return repo.create(usr)
}

// DeleteUsersByID deletes users, unassigning their students and deleting their plans.
func (repo *userRepository) DeleteUsersByID(_ context.Context, ids ...string) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	var n int
	for _, id := range ids {
		if _, ok := repo.db.users[id]; !ok {
			continue
		}
		delete(repo.db.users, id)
		n++

		for stID, st := range repo.db.students {
			if st.IsAssignedTo(id) {
				st.TeacherID.Valid, st.TeacherID.String = false, ""
				repo.db.students[stID] = st
			}
		}
		for eID, e := range repo.db.entries {
			if e.RecordedBy.Valid && e.RecordedBy.String == id {
				e.RecordedBy.Valid, e.RecordedBy.String = false, ""
				repo.db.entries[eID] = e
			}
		}
		for pID, p := range repo.db.plans {
			if p.TeacherID == id {
				delete(repo.db.plans, pID)
			}
		}
	}
	return n, nil
}
