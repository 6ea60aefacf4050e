package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/stridehq/stride/models"
)

type fakeSender struct {
	mu      sync.Mutex
	delay   time.Duration
	failFor map[string]error
	panicOn string
	calls   []string
}

func (f *fakeSender) Send(ctx context.Context, projectID uint, recipient, content string) error {
	f.mu.Lock()
	f.calls = append(f.calls, recipient)
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.panicOn != "" && f.panicOn == recipient {
		panic("channel exploded")
	}
	if err, ok := f.failFor[recipient]; ok {
		return err
	}
	return nil
}

func (f *fakeSender) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newTestDispatcher(t *testing.T, db *gorm.DB, sender *fakeSender, maxAttempts int) *Dispatcher {
	t.Helper()
	return &Dispatcher{
		db:     db,
		sender: sender,
		lease: &Lease{
			Key: "test:dispatch:" + t.Name(),
			TTL: 5 * time.Second,
		},
		interval:    time.Minute,
		maxAttempts: maxAttempts,
		backoff:     time.Millisecond,
	}
}

func seedDueTask(t *testing.T, db *gorm.DB, d *Dispatcher, projectID uint) *models.DispatchTask {
	t.Helper()
	task, err := d.ScheduleTask(projectID, "Day 3: share your progress photo", time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("schedule task: %v", err)
	}
	return task
}

func enroll(t *testing.T, db *gorm.DB, projectID, userID uint, subscribed bool) {
	t.Helper()
	m := models.ProjectMember{ProjectID: projectID, UserID: userID, Subscribed: subscribed}
	if err := db.Create(&m).Error; err != nil {
		t.Fatalf("enroll user %d: %v", userID, err)
	}
}

func taskStatus(t *testing.T, db *gorm.DB, id uint) string {
	t.Helper()
	var task models.DispatchTask
	if err := db.First(&task, id).Error; err != nil {
		t.Fatalf("load task: %v", err)
	}
	return task.Status
}

func TestDispatchPerRecipientIsolation(t *testing.T) {
	db, _, _ := newTestServices(t)
	project := seedProject(t, db, 0, 21)
	u1 := seedUser(t, db, "alice", 0, "chan-alice")
	u2 := seedUser(t, db, "bob", 0, "chan-bob")
	u3 := seedUser(t, db, "carol", 0, "chan-carol")
	for _, u := range []uint{u1.ID, u2.ID, u3.ID} {
		enroll(t, db, project.ID, u, true)
	}

	sender := &fakeSender{failFor: map[string]error{"chan-bob": errors.New("provider 502")}}
	d := newTestDispatcher(t, db, sender, 1)
	task := seedDueTask(t, db, d, project.ID)

	if err := d.ProcessDueTasks(context.Background()); err != nil {
		t.Fatalf("process due tasks: %v", err)
	}

	if got := taskStatus(t, db, task.ID); got != models.DispatchDone {
		t.Fatalf("expected DONE despite a failed recipient, got %s", got)
	}

	var logs []models.DispatchLog
	if err := db.Where("task_id = ?", task.ID).Order("user_id ASC").Find(&logs).Error; err != nil {
		t.Fatalf("load logs: %v", err)
	}
	if len(logs) != 3 {
		t.Fatalf("expected 3 log rows, got %d", len(logs))
	}
	if logs[0].Outcome != models.OutcomeSuccess || logs[2].Outcome != models.OutcomeSuccess {
		t.Fatalf("expected siblings to succeed, got %s and %s", logs[0].Outcome, logs[2].Outcome)
	}
	if logs[1].Outcome != models.OutcomeFailure || logs[1].Error != "provider 502" {
		t.Fatalf("expected captured failure for bob, got %s / %q", logs[1].Outcome, logs[1].Error)
	}
}

func TestDispatchPanicIsContainedToRecipient(t *testing.T) {
	db, _, _ := newTestServices(t)
	project := seedProject(t, db, 0, 21)
	u1 := seedUser(t, db, "alice", 0, "chan-alice")
	u2 := seedUser(t, db, "bob", 0, "chan-bob")
	enroll(t, db, project.ID, u1.ID, true)
	enroll(t, db, project.ID, u2.ID, true)

	sender := &fakeSender{panicOn: "chan-alice"}
	d := newTestDispatcher(t, db, sender, 1)
	task := seedDueTask(t, db, d, project.ID)

	if err := d.ProcessDueTasks(context.Background()); err != nil {
		t.Fatalf("process due tasks: %v", err)
	}

	if got := taskStatus(t, db, task.ID); got != models.DispatchDone {
		t.Fatalf("expected DONE, got %s", got)
	}
	var failed models.DispatchLog
	if err := db.Where("task_id = ? AND user_id = ?", task.ID, u1.ID).First(&failed).Error; err != nil {
		t.Fatalf("load alice log: %v", err)
	}
	if failed.Outcome != models.OutcomeFailure {
		t.Fatalf("expected FAILURE for panicking recipient, got %s", failed.Outcome)
	}
}

func TestDispatchUnconnectedRecipient(t *testing.T) {
	db, _, _ := newTestServices(t)
	project := seedProject(t, db, 0, 21)
	u := seedUser(t, db, "alice", 0, "") // no channel identity
	enroll(t, db, project.ID, u.ID, true)

	sender := &fakeSender{}
	d := newTestDispatcher(t, db, sender, 1)
	task := seedDueTask(t, db, d, project.ID)

	if err := d.ProcessDueTasks(context.Background()); err != nil {
		t.Fatalf("process due tasks: %v", err)
	}

	if sender.callCount() != 0 {
		t.Fatalf("expected no channel call for unconnected recipient, got %d", sender.callCount())
	}
	var entry models.DispatchLog
	if err := db.Where("task_id = ?", task.ID).First(&entry).Error; err != nil {
		t.Fatalf("load log: %v", err)
	}
	if entry.Outcome != models.OutcomeFailure || entry.Error != "recipient not connected" {
		t.Fatalf("expected not-connected failure, got %s / %q", entry.Outcome, entry.Error)
	}
	if got := taskStatus(t, db, task.ID); got != models.DispatchDone {
		t.Fatalf("expected DONE, got %s", got)
	}
}

func TestDispatchSkipsUnsubscribedAndInactive(t *testing.T) {
	db, _, _ := newTestServices(t)
	project := seedProject(t, db, 0, 21)
	active := seedUser(t, db, "alice", 0, "chan-alice")
	unsubscribed := seedUser(t, db, "bob", 0, "chan-bob")
	inactive := seedUser(t, db, "carol", 0, "chan-carol")
	db.Model(&models.User{}).Where("id = ?", inactive.ID).Update("active", false)

	enroll(t, db, project.ID, active.ID, true)
	enroll(t, db, project.ID, unsubscribed.ID, false)
	enroll(t, db, project.ID, inactive.ID, true)

	sender := &fakeSender{}
	d := newTestDispatcher(t, db, sender, 1)
	seedDueTask(t, db, d, project.ID)

	if err := d.ProcessDueTasks(context.Background()); err != nil {
		t.Fatalf("process due tasks: %v", err)
	}
	if sender.callCount() != 1 {
		t.Fatalf("expected exactly one send, got %d", sender.callCount())
	}
}

func TestDispatchFutureTaskNotPicked(t *testing.T) {
	db, _, _ := newTestServices(t)
	project := seedProject(t, db, 0, 21)
	u := seedUser(t, db, "alice", 0, "chan-alice")
	enroll(t, db, project.ID, u.ID, true)

	sender := &fakeSender{}
	d := newTestDispatcher(t, db, sender, 1)
	task, err := d.ScheduleTask(project.ID, "tomorrow's nudge", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}

	if err := d.ProcessDueTasks(context.Background()); err != nil {
		t.Fatalf("process due tasks: %v", err)
	}
	if sender.callCount() != 0 {
		t.Fatalf("expected no sends for a future task, got %d", sender.callCount())
	}
	if got := taskStatus(t, db, task.ID); got != models.DispatchScheduled {
		t.Fatalf("expected task still SCHEDULED, got %s", got)
	}
}

func TestDispatchRetryExhaustionIsPermanent(t *testing.T) {
	db, _, _ := newTestServices(t)
	project := seedProject(t, db, 0, 21)
	u := seedUser(t, db, "alice", 0, "chan-alice")
	enroll(t, db, project.ID, u.ID, true)

	sender := &fakeSender{failFor: map[string]error{"chan-alice": errors.New("timeout")}}
	d := newTestDispatcher(t, db, sender, 3)
	task := seedDueTask(t, db, d, project.ID)

	if err := d.ProcessDueTasks(context.Background()); err != nil {
		t.Fatalf("process due tasks: %v", err)
	}

	if sender.callCount() != 3 {
		t.Fatalf("expected 3 attempts, got %d", sender.callCount())
	}
	var entry models.DispatchLog
	if err := db.Where("task_id = ?", task.ID).First(&entry).Error; err != nil {
		t.Fatalf("load log: %v", err)
	}
	if entry.Outcome != models.OutcomeFailedPermanent || entry.Attempts != 3 {
		t.Fatalf("expected FAILED_PERMANENT after 3 attempts, got %s / %d", entry.Outcome, entry.Attempts)
	}
}

func TestTickIsNoOpWhileLeaseHeld(t *testing.T) {
	db, _, _ := newTestServices(t)
	project := seedProject(t, db, 0, 21)
	u := seedUser(t, db, "alice", 0, "chan-alice")
	enroll(t, db, project.ID, u.ID, true)

	sender := &fakeSender{delay: 150 * time.Millisecond}
	d := newTestDispatcher(t, db, sender, 1)
	seedDueTask(t, db, d, project.ID)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		d.Tick(context.Background())
	}()
	time.Sleep(30 * time.Millisecond) // first tick is mid-send now
	d.Tick(context.Background())      // must be a no-op
	wg.Wait()

	if sender.callCount() != 1 {
		t.Fatalf("expected exactly one send across overlapping ticks, got %d", sender.callCount())
	}

	// lease released: a later tick runs again (nothing due, but not skipped)
	release, ok := d.lease.Acquire(context.Background())
	if !ok {
		t.Fatal("expected lease to be free after tick finished")
	}
	release()
}

func TestScheduleTaskValidation(t *testing.T) {
	db, _, _ := newTestServices(t)
	project := seedProject(t, db, 0, 21)

	sender := &fakeSender{}
	d := newTestDispatcher(t, db, sender, 1)

	if _, err := d.ScheduleTask(project.ID, "", time.Now()); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for empty content, got %v", err)
	}
	if _, err := d.ScheduleTask(9999, "hello", time.Now()); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration for unknown project, got %v", err)
	}
}

func TestTaskLogsLookup(t *testing.T) {
	db, _, _ := newTestServices(t)
	project := seedProject(t, db, 0, 21)
	u := seedUser(t, db, "alice", 0, "chan-alice")
	enroll(t, db, project.ID, u.ID, true)

	sender := &fakeSender{}
	d := newTestDispatcher(t, db, sender, 1)
	task := seedDueTask(t, db, d, project.ID)

	if err := d.ProcessDueTasks(context.Background()); err != nil {
		t.Fatalf("process due tasks: %v", err)
	}

	logs, err := d.TaskLogs(task.PublicID)
	if err != nil {
		t.Fatalf("task logs: %v", err)
	}
	if len(logs) != 1 || logs[0].Outcome != models.OutcomeSuccess {
		t.Fatalf("unexpected logs: %+v", logs)
	}

	if _, err := d.TaskLogs("no-such-task"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
