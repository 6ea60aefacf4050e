package services

import (
	"testing"

	"gorm.io/gorm"
)

func applyDelta(t *testing.T, db *gorm.DB, ranking *RankingService, userID, projectID uint, points, days int) {
	t.Helper()
	err := db.Transaction(func(tx *gorm.DB) error {
		return ranking.ApplyDelta(tx, userID, projectID, points, days)
	})
	if err != nil {
		t.Fatalf("apply delta: %v", err)
	}
}

func TestApplyDeltaCreatesAggregate(t *testing.T) {
	db, _, ranking := newTestServices(t)
	user := seedUser(t, db, "alice", 0, "")
	project := seedProject(t, db, 0, 20)

	applyDelta(t, db, ranking, user.ID, project.ID, 10, 1)

	agg := loadAggregate(t, db, user.ID, project.ID)
	if agg == nil {
		t.Fatal("expected aggregate row")
	}
	if agg.TotalPoints != 10 || agg.CompletedDays != 1 || agg.CompletionRate != 5 {
		t.Fatalf("got %d points / %d days / %d%%", agg.TotalPoints, agg.CompletedDays, agg.CompletionRate)
	}
}

func TestApplyDeltaNeverGoesNegative(t *testing.T) {
	db, _, ranking := newTestServices(t)
	user := seedUser(t, db, "alice", 0, "")
	project := seedProject(t, db, 0, 20)

	applyDelta(t, db, ranking, user.ID, project.ID, -50, -3)

	agg := loadAggregate(t, db, user.ID, project.ID)
	if agg == nil {
		t.Fatal("expected aggregate row")
	}
	if agg.TotalPoints != 0 || agg.CompletedDays != 0 || agg.CompletionRate != 0 {
		t.Fatalf("expected clamped zeros, got %d / %d / %d", agg.TotalPoints, agg.CompletedDays, agg.CompletionRate)
	}
}

func TestCompletionRateStaysWithinBounds(t *testing.T) {
	db, _, ranking := newTestServices(t)
	user := seedUser(t, db, "alice", 0, "")
	project := seedProject(t, db, 0, 10)

	applyDelta(t, db, ranking, user.ID, project.ID, 10, 15) // more days than the project has

	agg := loadAggregate(t, db, user.ID, project.ID)
	if agg.CompletionRate != 100 {
		t.Fatalf("expected rate capped at 100, got %d", agg.CompletionRate)
	}
}

func TestMissingProjectFallsBackToDefaultDays(t *testing.T) {
	db, _, ranking := newTestServices(t)
	user := seedUser(t, db, "alice", 0, "")

	applyDelta(t, db, ranking, user.ID, 777, 10, 1) // no such project

	agg := loadAggregate(t, db, user.ID, 777)
	if agg == nil {
		t.Fatal("expected aggregate row")
	}
	if agg.CompletionRate != 5 { // round(1/21*100)
		t.Fatalf("expected default 21-day rate 5, got %d", agg.CompletionRate)
	}
}

func TestRankUsersOrderingAndTieBreak(t *testing.T) {
	db, _, ranking := newTestServices(t)
	project := seedProject(t, db, 0, 21)
	alice := seedUser(t, db, "alice", 0, "")
	bob := seedUser(t, db, "bob", 0, "")
	carol := seedUser(t, db, "carol", 0, "")

	applyDelta(t, db, ranking, alice.ID, project.ID, 30, 2)
	applyDelta(t, db, ranking, bob.ID, project.ID, 50, 3)
	applyDelta(t, db, ranking, carol.ID, project.ID, 30, 2) // ties alice

	entries, err := ranking.RankUsers(10)
	if err != nil {
		t.Fatalf("rank users: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].Username != "bob" || entries[0].TotalPoints != 50 {
		t.Fatalf("expected bob first with 50, got %s/%d", entries[0].Username, entries[0].TotalPoints)
	}
	// tie broken by user id ascending
	if entries[1].UserID != alice.ID || entries[2].UserID != carol.ID {
		t.Fatalf("expected alice before carol on tie, got %d then %d", entries[1].UserID, entries[2].UserID)
	}
}

func TestRankUsersSumsAcrossProjects(t *testing.T) {
	db, _, ranking := newTestServices(t)
	p1 := seedProject(t, db, 0, 21)
	p2 := seedProject(t, db, 0, 21)
	alice := seedUser(t, db, "alice", 0, "")

	applyDelta(t, db, ranking, alice.ID, p1.ID, 30, 2)
	applyDelta(t, db, ranking, alice.ID, p2.ID, 20, 1)

	entries, err := ranking.RankUsers(10)
	if err != nil {
		t.Fatalf("rank users: %v", err)
	}
	if len(entries) != 1 || entries[0].TotalPoints != 50 {
		t.Fatalf("expected single entry with 50 points, got %+v", entries)
	}
}

func TestRankOrganizations(t *testing.T) {
	db, _, ranking := newTestServices(t)

	if err := db.Exec("INSERT INTO organizations (id, name) VALUES (1, 'Acme'), (2, 'Globex')").Error; err != nil {
		t.Fatalf("seed orgs: %v", err)
	}
	project := seedProject(t, db, 1, 21)
	alice := seedUser(t, db, "alice", 1, "")
	bob := seedUser(t, db, "bob", 1, "")
	carol := seedUser(t, db, "carol", 2, "")

	applyDelta(t, db, ranking, alice.ID, project.ID, 30, 2)
	applyDelta(t, db, ranking, bob.ID, project.ID, 10, 1)
	applyDelta(t, db, ranking, carol.ID, project.ID, 25, 2)

	entries, err := ranking.RankOrganizations()
	if err != nil {
		t.Fatalf("rank organizations: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 orgs, got %d", len(entries))
	}
	if entries[0].Name != "Acme" || entries[0].TotalPoints != 40 || entries[0].MemberCount != 2 {
		t.Fatalf("unexpected first org: %+v", entries[0])
	}
	if entries[0].AveragePoints != 20 {
		t.Fatalf("expected average 20, got %d", entries[0].AveragePoints)
	}
	if entries[1].Name != "Globex" || entries[1].TotalPoints != 25 || entries[1].MemberCount != 1 {
		t.Fatalf("unexpected second org: %+v", entries[1])
	}
}
