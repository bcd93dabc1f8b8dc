package inmemdb_test

import (
	"testing"

	"github.com/trezcool/preschool/storage/database/dbtest"
	inmemdb "github.com/trezcool/preschool/storage/database/inmem"
)

func TestRepositories(t *testing.T) {
	dbtest.RunRepositoryTests(t, func(t *testing.T) dbtest.Repos {
		db := inmemdb.Open()
		return dbtest.Repos{
			Users:    inmemdb.NewUserRepository(db),
			Students: inmemdb.NewStudentRepository(db),
			Progress: inmemdb.NewProgressRepository(db),
			Plans:    inmemdb.NewPlanRepository(db),
		}
	})
}
