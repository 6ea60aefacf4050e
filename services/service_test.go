package services

import (
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/stridehq/stride/config"
	"github.com/stridehq/stride/models"
)

// setTestConfig installs a baseline config. Redis points at a dead port so
// cache and lease code exercise their fallback paths deterministically.
func setTestConfig(t *testing.T, mutate func(*config.AppConfig)) {
	t.Helper()
	base := func() config.AppConfig {
		return config.AppConfig{
			JWTSecret: "test-secret",
			RedisHost: "127.0.0.1",
			RedisPort: 1,
		}
	}
	c := base()
	if mutate != nil {
		mutate(&c)
	}
	config.SetForTest(c)
	t.Cleanup(func() { config.SetForTest(base()) })
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.User{},
		&models.Organization{},
		&models.Project{},
		&models.ProjectMember{},
		&models.DayTemplate{},
		&models.CompletionRecord{},
		&models.RankingAggregate{},
		&models.DispatchTask{},
		&models.DispatchLog{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestServices(t *testing.T) (*gorm.DB, *LedgerService, *RankingService) {
	t.Helper()
	setTestConfig(t, nil)
	db := newTestDB(t)
	ranking := NewRankingService(db)
	ledger := NewLedgerService(db, ranking, PointsPolicy{DefaultBase: 10, MediaBonus: 15})
	return db, ledger, ranking
}

func seedUser(t *testing.T, db *gorm.DB, username string, orgID uint, channelID string) *models.User {
	t.Helper()
	u := models.User{
		Username:       username,
		OrganizationID: orgID,
		ChannelID:      channelID,
		Active:         true,
	}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("seed user %s: %v", username, err)
	}
	return &u
}

func seedProject(t *testing.T, db *gorm.DB, orgID uint, totalDays int) *models.Project {
	t.Helper()
	p := models.Project{
		OrganizationID: orgID,
		Name:           "21-day challenge",
		TotalDays:      totalDays,
		StartDate:      time.Now(),
	}
	if err := db.Create(&p).Error; err != nil {
		t.Fatalf("seed project: %v", err)
	}
	return &p
}

func seedTemplate(t *testing.T, db *gorm.DB, projectID uint, day, pointsBase int, requiresPhoto bool) *models.DayTemplate {
	t.Helper()
	tmpl := models.DayTemplate{
		ProjectID:     projectID,
		DayNumber:     day,
		Title:         "Drink two liters of water",
		PointsBase:    pointsBase,
		RequiresPhoto: requiresPhoto,
	}
	if err := db.Create(&tmpl).Error; err != nil {
		t.Fatalf("seed template day %d: %v", day, err)
	}
	return &tmpl
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func loadAggregate(t *testing.T, db *gorm.DB, userID, projectID uint) *models.RankingAggregate {
	t.Helper()
	var agg models.RankingAggregate
	err := db.Where("user_id = ? AND project_id = ?", userID, projectID).First(&agg).Error
	if err == gorm.ErrRecordNotFound {
		return nil
	}
	if err != nil {
		t.Fatalf("load aggregate: %v", err)
	}
	return &agg
}
