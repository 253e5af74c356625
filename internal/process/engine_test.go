package process

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"fizko/internal/models"
)

func setupEngineTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Process{}, &models.Task{}, &models.ProcessExecution{}))
	return db
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// recordingRunner runs every automatic task successfully and records which
// tasks it saw, synchronizing so tests can wait for dispatch to finish.
type recordingRunner struct {
	mu  sync.Mutex
	ran []string
	wg  *sync.WaitGroup
}

func (r *recordingRunner) Run(ctx context.Context, task models.Task) error {
	defer r.wg.Done()
	r.mu.Lock()
	r.ran = append(r.ran, task.Name)
	r.mu.Unlock()
	return nil
}

func createBareProcess(t *testing.T, db *gorm.DB) models.Process {
	p := models.Process{
		ProcessType: models.ProcessTypeF29,
		Status:      models.ProcessStatusDraft,
		DueDate:     time.Now().Add(24 * time.Hour),
		Period:      "202403",
	}
	require.NoError(t, db.Create(&p).Error)
	return p
}

func TestSelectWave_FirstPendingPlusContiguousParallel(t *testing.T) {
	tasks := []models.Task{
		{BaseModel: models.BaseModel{}, Status: models.TaskStatusCompleted, ExecutionOrder: 1},
		{Status: models.TaskStatusPending, ExecutionOrder: 2, CanRunParallel: true},
		{Status: models.TaskStatusPending, ExecutionOrder: 2, CanRunParallel: true},
		{Status: models.TaskStatusPending, ExecutionOrder: 3, CanRunParallel: false},
	}
	wave := selectWave(tasks)
	assert.Len(t, wave, 2)
	for _, w := range wave {
		assert.Equal(t, 2, w.ExecutionOrder)
	}
}

func TestSelectWave_SingleNonParallelTask(t *testing.T) {
	tasks := []models.Task{
		{Status: models.TaskStatusPending, ExecutionOrder: 1, CanRunParallel: false},
		{Status: models.TaskStatusPending, ExecutionOrder: 2, CanRunParallel: true},
	}
	wave := selectWave(tasks)
	assert.Len(t, wave, 1)
	assert.Equal(t, 1, wave[0].ExecutionOrder)
}

func TestSelectWave_NoPendingTasksReturnsNil(t *testing.T) {
	tasks := []models.Task{{Status: models.TaskStatusCompleted, ExecutionOrder: 1}}
	assert.Nil(t, selectWave(tasks))
}

func TestEvaluateConditions_PreviousTaskStatusMustMatchForNonOptionalPredecessors(t *testing.T) {
	conditions, _ := json.Marshal(map[string]any{"previous_task_status": "completed"})
	current := models.Task{ExecutionOrder: 2, ExecutionConditions: conditions}
	predecessorDone := models.Task{ExecutionOrder: 1, Status: models.TaskStatusCompleted}
	predecessorPending := models.Task{ExecutionOrder: 1, Status: models.TaskStatusPending}

	assert.True(t, evaluateConditions(current, []models.Task{current, predecessorDone}))
	assert.False(t, evaluateConditions(current, []models.Task{current, predecessorPending}))
}

func TestEvaluateConditions_SkipsOptionalPredecessors(t *testing.T) {
	conditions, _ := json.Marshal(map[string]any{"previous_task_status": "completed"})
	current := models.Task{ExecutionOrder: 2, ExecutionConditions: conditions}
	optConditions, _ := json.Marshal(map[string]any{"optional": true})
	optionalPredecessor := models.Task{ExecutionOrder: 1, Status: models.TaskStatusSkipped, ExecutionConditions: optConditions}

	assert.True(t, evaluateConditions(current, []models.Task{current, optionalPredecessor}))
}

func TestEvaluateConditions_NoConditionsAlwaysTrue(t *testing.T) {
	task := models.Task{ExecutionOrder: 1}
	assert.True(t, evaluateConditions(task, []models.Task{task}))
}

func TestIsOptional_ReadsMergedFlag(t *testing.T) {
	conditions, _ := json.Marshal(map[string]any{"optional": true})
	task := models.Task{ExecutionConditions: conditions}
	assert.True(t, isOptional(task))

	assert.False(t, isOptional(models.Task{}))
}

func TestEngine_StartProcess_DispatchesAutomaticFirstTask(t *testing.T) {
	db := setupEngineTestDB(t)
	process := createBareProcess(t, db)

	task1 := models.Task{ProcessID: process.ID, Name: "sync", Kind: models.TaskKindAutomatic, Status: models.TaskStatusPending, ExecutionOrder: 1, DueDate: process.DueDate}
	task2 := models.Task{ProcessID: process.ID, Name: "draft", Kind: models.TaskKindManual, Status: models.TaskStatusPending, ExecutionOrder: 2, DueDate: process.DueDate}
	require.NoError(t, db.Create(&task1).Error)
	require.NoError(t, db.Create(&task2).Error)

	var wg sync.WaitGroup
	wg.Add(1)
	runner := &recordingRunner{wg: &wg}
	engine := NewEngine(db, runner, testLogger(), 2)

	execution, err := engine.StartProcess(context.Background(), process.ID)
	require.NoError(t, err)
	require.NotNil(t, execution)

	wg.Wait()
	time.Sleep(20 * time.Millisecond) // let completeAutomatic's own transaction land

	var reloadedTask1 models.Task
	require.NoError(t, db.First(&reloadedTask1, "id = ?", task1.ID).Error)
	assert.Equal(t, models.TaskStatusCompleted, reloadedTask1.Status)

	var reloadedProcess models.Process
	require.NoError(t, db.First(&reloadedProcess, "id = ?", process.ID).Error)
	assert.Equal(t, models.ProcessStatusActive, reloadedProcess.Status)

	var reloadedTask2 models.Task
	require.NoError(t, db.First(&reloadedTask2, "id = ?", task2.ID).Error)
	assert.Equal(t, models.TaskStatusPending, reloadedTask2.Status, "manual task waits for explicit completion")
}

func TestEngine_CompleteManualTask_AdvancesToCompletion(t *testing.T) {
	db := setupEngineTestDB(t)
	process := createBareProcess(t, db)
	process.Status = models.ProcessStatusActive
	require.NoError(t, db.Save(&process).Error)

	task := models.Task{ProcessID: process.ID, Name: "review", Kind: models.TaskKindManual, Status: models.TaskStatusPending, ExecutionOrder: 1, DueDate: process.DueDate}
	require.NoError(t, db.Create(&task).Error)
	execution := models.ProcessExecution{ProcessID: process.ID, Status: models.ExecutionStatusRunning, TotalSteps: 1, IsRunning: true}
	require.NoError(t, db.Create(&execution).Error)

	var wg sync.WaitGroup
	engine := NewEngine(db, &recordingRunner{wg: &wg}, testLogger(), 2)

	require.NoError(t, engine.CompleteManualTask(context.Background(), task.ID, true, ""))

	var reloadedProcess models.Process
	require.NoError(t, db.First(&reloadedProcess, "id = ?", process.ID).Error)
	assert.Equal(t, models.ProcessStatusCompleted, reloadedProcess.Status)

	var reloadedExecution models.ProcessExecution
	require.NoError(t, db.First(&reloadedExecution, "id = ?", execution.ID).Error)
	assert.Equal(t, models.ExecutionStatusCompleted, reloadedExecution.Status)
}

func TestEngine_CompleteManualTask_FailureDoesNotAutoAdvance(t *testing.T) {
	db := setupEngineTestDB(t)
	process := createBareProcess(t, db)
	process.Status = models.ProcessStatusActive
	require.NoError(t, db.Save(&process).Error)

	task := models.Task{ProcessID: process.ID, Name: "review", Kind: models.TaskKindManual, Status: models.TaskStatusPending, ExecutionOrder: 1, DueDate: process.DueDate}
	require.NoError(t, db.Create(&task).Error)
	execution := models.ProcessExecution{ProcessID: process.ID, Status: models.ExecutionStatusRunning, TotalSteps: 1, IsRunning: true}
	require.NoError(t, db.Create(&execution).Error)

	var wg sync.WaitGroup
	engine := NewEngine(db, &recordingRunner{wg: &wg}, testLogger(), 2)

	require.NoError(t, engine.CompleteManualTask(context.Background(), task.ID, false, "rejected by reviewer"))

	var reloadedProcess models.Process
	require.NoError(t, db.First(&reloadedProcess, "id = ?", process.ID).Error)
	assert.Equal(t, models.ProcessStatusActive, reloadedProcess.Status, "a failed manual task waits for a human, it doesn't fail the process by itself")

	var reloadedTask models.Task
	require.NoError(t, db.First(&reloadedTask, "id = ?", task.ID).Error)
	assert.Equal(t, models.TaskStatusFailed, reloadedTask.Status)
	assert.Equal(t, "rejected by reviewer", reloadedTask.FailureReason)
}

func TestEngine_OptionalTaskFailedConditionIsSkippedNotFailed(t *testing.T) {
	db := setupEngineTestDB(t)
	process := createBareProcess(t, db)
	process.Status = models.ProcessStatusActive
	require.NoError(t, db.Save(&process).Error)

	conditions, _ := json.Marshal(map[string]any{"context_variable": map[string]any{"name": "x", "value": "y"}, "optional": true})
	task := models.Task{ProcessID: process.ID, Name: "optional step", Kind: models.TaskKindManual, Status: models.TaskStatusPending, ExecutionOrder: 1, DueDate: process.DueDate, ExecutionConditions: conditions}
	require.NoError(t, db.Create(&task).Error)
	execution := models.ProcessExecution{ProcessID: process.ID, Status: models.ExecutionStatusRunning, TotalSteps: 1, IsRunning: true}
	require.NoError(t, db.Create(&execution).Error)

	require.NoError(t, (&Engine{db: db, log: testLogger(), semaphore: make(chan struct{}, 1)}).ExecuteNextSteps(context.Background(), execution.ID))

	var reloadedTask models.Task
	require.NoError(t, db.First(&reloadedTask, "id = ?", task.ID).Error)
	assert.Equal(t, models.TaskStatusSkipped, reloadedTask.Status)

	var reloadedProcess models.Process
	require.NoError(t, db.First(&reloadedProcess, "id = ?", process.ID).Error)
	assert.Equal(t, models.ProcessStatusCompleted, reloadedProcess.Status, "every task resolved (by skip), so the process completes")
}

func TestEngine_RequiredTaskFailedConditionFailsProcess(t *testing.T) {
	db := setupEngineTestDB(t)
	process := createBareProcess(t, db)
	process.Status = models.ProcessStatusActive
	require.NoError(t, db.Save(&process).Error)

	conditions, _ := json.Marshal(map[string]any{"context_variable": map[string]any{"name": "x", "value": "y"}})
	task := models.Task{ProcessID: process.ID, Name: "required step", Kind: models.TaskKindManual, Status: models.TaskStatusPending, ExecutionOrder: 1, DueDate: process.DueDate, ExecutionConditions: conditions}
	require.NoError(t, db.Create(&task).Error)
	execution := models.ProcessExecution{ProcessID: process.ID, Status: models.ExecutionStatusRunning, TotalSteps: 1, IsRunning: true}
	require.NoError(t, db.Create(&execution).Error)

	require.NoError(t, (&Engine{db: db, log: testLogger(), semaphore: make(chan struct{}, 1)}).ExecuteNextSteps(context.Background(), execution.ID))

	var reloadedProcess models.Process
	require.NoError(t, db.First(&reloadedProcess, "id = ?", process.ID).Error)
	assert.Equal(t, models.ProcessStatusFailed, reloadedProcess.Status)

	var reloadedExecution models.ProcessExecution
	require.NoError(t, db.First(&reloadedExecution, "id = ?", execution.ID).Error)
	assert.Equal(t, models.ExecutionStatusFailed, reloadedExecution.Status)
	assert.NotEmpty(t, reloadedExecution.LastError)
}
