package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"projectnest/internal/models"
)

func TestMigrate_SeedsCategoriesOnce(t *testing.T) {
	gdb, err := gorm.Open(sqlite.Open("file:migrate?mode=memory&cache=shared"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	log := zaptest.NewLogger(t)

	require.NoError(t, Migrate(gdb, log))
	require.NoError(t, Migrate(gdb, log))

	var count int64
	require.NoError(t, gdb.Model(&models.Category{}).Count(&count).Error)
	assert.EqualValues(t, 6, count)

	var first models.Category
	require.NoError(t, gdb.Order("id ASC").First(&first).Error)
	assert.Equal(t, "web", first.Name)
}

func TestMigrate_OnePendingApplication(t *testing.T) {
	gdb, err := gorm.Open(sqlite.Open("file:pending?mode=memory&cache=shared"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, Migrate(gdb, zaptest.NewLogger(t)))
	assert.True(t, gdb.Migrator().HasIndex(&models.Application{}, PendingApplicationIndex))

	owner := models.User{Username: "ada", Email: "ada@nest.test"}
	applicant := models.User{Username: "bob", Email: "bob@nest.test"}
	require.NoError(t, gdb.Create(&owner).Error)
	require.NoError(t, gdb.Create(&applicant).Error)
	project := models.Project{Slug: "p1", OwnerID: owner.ID, CategoryID: 1, Title: "Nest", Status: models.ProjectOpen}
	require.NoError(t, gdb.Create(&project).Error)

	pending := func() error {
		return gdb.Create(&models.Application{ProjectID: project.ID, ApplicantID: applicant.ID, Status: models.ApplicationPending}).Error
	}
	require.NoError(t, pending())
	assert.ErrorIs(t, pending(), gorm.ErrDuplicatedKey)

	// settled applications do not count
	require.NoError(t, gdb.Model(&models.Application{}).Where("applicant_id = ?", applicant.ID).
		Update("status", models.ApplicationWithdrawn).Error)
	require.NoError(t, pending())
}
