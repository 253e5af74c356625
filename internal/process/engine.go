/*
Package process - Process execution engine (C13)

Engine advances a Process one wave at a time: the first pending Task plus
any contiguous same-order tasks flagged can_run_parallel. Automatic tasks
are handed to an AutomaticTaskRunner on a bounded worker pool; manual tasks
are left pending until an explicit external action (CompleteManualTask)
transitions them. ProcessExecution is the synchronization point and is
locked with SELECT ... FOR UPDATE while a wave is being advanced.
*/
package process

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	fizkoerrors "fizko/internal/errors"
	"fizko/internal/models"
)

// AutomaticTaskRunner executes one automatic task's side effects (sync
// documents, generate a form draft, submit to the portal, ...). Returning
// an error marks the task failed.
type AutomaticTaskRunner interface {
	Run(ctx context.Context, task models.Task) error
}

// Engine advances Process/Task state machines under row-locked
// ProcessExecution synchronization.
type Engine struct {
	db        *gorm.DB
	runner    AutomaticTaskRunner
	log       *logrus.Logger
	semaphore chan struct{} // bounds concurrent automatic-task goroutines
}

// NewEngine returns an Engine whose automatic tasks run on at most
// maxWorkers concurrent goroutines.
func NewEngine(db *gorm.DB, runner AutomaticTaskRunner, log *logrus.Logger, maxWorkers int) *Engine {
	if maxWorkers <= 0 {
		maxWorkers = 4
	}
	return &Engine{db: db, runner: runner, log: log, semaphore: make(chan struct{}, maxWorkers)}
}

// StartProcess transitions a draft or paused Process to active, creates its
// ProcessExecution and runs the first wave.
func (e *Engine) StartProcess(ctx context.Context, processID uuid.UUID) (*models.ProcessExecution, error) {
	var process models.Process
	if err := e.db.WithContext(ctx).First(&process, "id = ?", processID).Error; err != nil {
		return nil, fizkoerrors.Wrap(err, fizkoerrors.ErrInternal)
	}
	if process.Status != models.ProcessStatusDraft && process.Status != models.ProcessStatusPaused {
		return nil, fizkoerrors.NewAppError(fizkoerrors.KindConditionUnmet,
			fmt.Sprintf("process %s is %s, cannot start", process.ID, process.Status), false)
	}

	var totalSteps int64
	e.db.WithContext(ctx).Model(&models.Task{}).Where("process_id = ?", process.ID).Count(&totalSteps)

	var execution models.ProcessExecution
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		process.Status = models.ProcessStatusActive
		if err := tx.Save(&process).Error; err != nil {
			return err
		}
		execution = models.ProcessExecution{
			ProcessID:  process.ID,
			Status:     models.ExecutionStatusRunning,
			TotalSteps: int(totalSteps),
			IsRunning:  true,
		}
		return tx.Create(&execution).Error
	})
	if err != nil {
		return nil, fizkoerrors.Wrap(err, fizkoerrors.ErrInternal)
	}

	if err := e.ExecuteNextSteps(ctx, execution.ID); err != nil {
		return &execution, err
	}
	return &execution, nil
}

// ExecuteNextSteps locks the ProcessExecution row, selects the next wave of
// pending tasks, and dispatches them. If the whole wave resolves
// synchronously (every task skipped) it loops to pick up the following
// wave; otherwise it returns, leaving progression to an async task
// callback or an external manual action.
func (e *Engine) ExecuteNextSteps(ctx context.Context, executionID uuid.UUID) error {
	for {
		advanced, done, err := e.advanceOneWave(ctx, executionID)
		if err != nil || done || !advanced {
			return err
		}
	}
}

// advanceOneWave processes exactly one wave under a single row-locked
// transaction. advanced reports whether the wave resolved entirely
// synchronously (so the caller should loop for the next wave); done
// reports whether the process has completed or failed.
func (e *Engine) advanceOneWave(ctx context.Context, executionID uuid.UUID) (advanced bool, done bool, err error) {
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var execution models.ProcessExecution
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&execution, "id = ?", executionID).Error; err != nil {
			return err
		}

		var process models.Process
		if err := tx.First(&process, "id = ?", execution.ProcessID).Error; err != nil {
			return err
		}
		if process.Status == models.ProcessStatusCancelled {
			execution.IsRunning = false
			done = true
			return tx.Save(&execution).Error
		}

		var allTasks []models.Task
		if err := tx.Where("process_id = ?", process.ID).Order("execution_order asc").Find(&allTasks).Error; err != nil {
			return err
		}

		for _, t := range allTasks {
			if t.Status == models.TaskStatusInProgress {
				// the current wave is still running; the completion of its
				// last task resumes progression
				return tx.Save(&execution).Error
			}
		}

		wave := selectWave(allTasks)
		if wave == nil {
			execution.Status = models.ExecutionStatusCompleted
			execution.IsRunning = false
			process.Status = models.ProcessStatusCompleted
			now := time.Now()
			process.CompletedAt = &now
			done = true
			if err := tx.Save(&process).Error; err != nil {
				return err
			}
			return tx.Save(&execution).Error
		}

		execution.CurrentWave++
		allResolvedSynchronously := true

		for _, task := range wave {
			ok := evaluateConditions(task, allTasks)
			if !ok {
				if !isOptional(task) {
					task.Status = models.TaskStatusFailed
					task.FailureReason = "execution condition not satisfied"
					execution.TasksFailed++
					execution.Status = models.ExecutionStatusFailed
					execution.IsRunning = false
					execution.LastError = fmt.Sprintf("task %q: execution condition not satisfied", task.Name)
					if err := tx.Save(&task).Error; err != nil {
						return err
					}
					process.Status = models.ProcessStatusFailed
					done = true
					if err := tx.Save(&process).Error; err != nil {
						return err
					}
					return tx.Save(&execution).Error
				}
				task.Status = models.TaskStatusSkipped
				if err := tx.Save(&task).Error; err != nil {
					return err
				}
				continue
			}

			switch task.Kind {
			case models.TaskKindAutomatic:
				task.Status = models.TaskStatusInProgress
				if err := tx.Save(&task).Error; err != nil {
					return err
				}
				allResolvedSynchronously = false
				e.dispatchAutomatic(task, execution.ID)
			default: // manual: left pending, advanced externally
				allResolvedSynchronously = false
			}
		}

		advanced = allResolvedSynchronously
		return tx.Save(&execution).Error
	})
	return advanced, done, mapEngineErr(err)
}

func mapEngineErr(err error) error {
	if err == nil {
		return nil
	}
	var appErr *fizkoerrors.AppError
	if fizkoerrors.As(err, &appErr) {
		return appErr
	}
	return fizkoerrors.Wrap(err, fizkoerrors.ErrInternal)
}

// dispatchAutomatic runs task on a bounded worker goroutine and calls back
// into ExecuteNextSteps on completion.
func (e *Engine) dispatchAutomatic(task models.Task, executionID uuid.UUID) {
	e.semaphore <- struct{}{}
	go func() {
		defer func() { <-e.semaphore }()
		ctx := context.Background()
		runErr := e.runner.Run(ctx, task)
		e.completeAutomatic(ctx, task.ID, executionID, runErr)
	}()
}

func (e *Engine) completeAutomatic(ctx context.Context, taskID, executionID uuid.UUID, runErr error) {
	resumable := false
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var task models.Task
		if err := tx.First(&task, "id = ?", taskID).Error; err != nil {
			return err
		}
		var execution models.ProcessExecution
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&execution, "id = ?", executionID).Error; err != nil {
			return err
		}

		if runErr != nil {
			task.Status = models.TaskStatusFailed
			task.FailureReason = runErr.Error()
			execution.TasksFailed++
			if !isOptional(task) {
				execution.Status = models.ExecutionStatusFailed
				execution.IsRunning = false
				execution.LastError = runErr.Error()
				if err := tx.Save(&task).Error; err != nil {
					return err
				}
				return tx.Save(&execution).Error
			}
			resumable = true
		} else {
			task.Status = models.TaskStatusCompleted
			now := time.Now()
			task.CompletedAt = &now
			execution.TasksCompleted++
			resumable = true
		}
		if err := tx.Save(&task).Error; err != nil {
			return err
		}
		return tx.Save(&execution).Error
	})
	if err != nil {
		e.log.WithError(err).WithField("task_id", taskID).Error("failed to record automatic task completion")
		return
	}
	if resumable {
		if err := e.ExecuteNextSteps(ctx, executionID); err != nil {
			e.log.WithError(err).WithField("execution_id", executionID).Warn("execute_next_steps failed after task completion")
		}
	}
}

// CompleteManualTask transitions a manual task to completed (or failed) by
// external user action, then resumes wave progression.
func (e *Engine) CompleteManualTask(ctx context.Context, taskID uuid.UUID, success bool, failureReason string) error {
	var executionID uuid.UUID
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var task models.Task
		if err := tx.First(&task, "id = ?", taskID).Error; err != nil {
			return err
		}
		var execution models.ProcessExecution
		if err := tx.Where("process_id = ?", task.ProcessID).First(&execution).Error; err != nil {
			return err
		}
		executionID = execution.ID

		if success {
			task.Status = models.TaskStatusCompleted
			now := time.Now()
			task.CompletedAt = &now
			execution.TasksCompleted++
		} else {
			task.Status = models.TaskStatusFailed
			task.FailureReason = failureReason
			execution.TasksFailed++
		}
		if err := tx.Save(&task).Error; err != nil {
			return err
		}
		return tx.Save(&execution).Error
	})
	if err != nil {
		return mapEngineErr(err)
	}
	if !success {
		return nil // failed manual task: wait for a human to retry/cancel, don't auto-advance
	}
	return e.ExecuteNextSteps(ctx, executionID)
}

// selectWave returns the first pending task plus any immediately following
// pending tasks sharing its execution_order with can_run_parallel == true.
// A first task without can_run_parallel forms a wave on its own. allTasks must be ordered by execution_order ascending. Returns nil if no
// pending task remains.
func selectWave(allTasks []models.Task) []models.Task {
	start := -1
	for i, t := range allTasks {
		if t.Status == models.TaskStatusPending {
			start = i
			break
		}
	}
	if start == -1 {
		return nil
	}

	wave := []models.Task{allTasks[start]}
	order := allTasks[start].ExecutionOrder
	if !allTasks[start].CanRunParallel {
		return wave
	}
	for i := start + 1; i < len(allTasks); i++ {
		t := allTasks[i]
		if t.ExecutionOrder != order || t.Status != models.TaskStatusPending || !t.CanRunParallel {
			break
		}
		wave = append(wave, t)
	}
	return wave
}

// evaluateConditions evaluates task's execution_conditions against the
// current state of its process. The grammar is a closed set of keys:
// previous_task_status (every preceding non-optional task must have that
// status), context_variable (a {name,value} pair the context must hold),
// company_data (placeholder, always true), require_approval (treated as
// satisfied; approval is modelled outside the engine).
func evaluateConditions(task models.Task, allTasks []models.Task) bool {
	conditions := decodeConditions(task)
	if len(conditions) == 0 {
		return true
	}

	if want, ok := conditions["previous_task_status"].(string); ok {
		for _, other := range allTasks {
			if other.ID == task.ID || other.ExecutionOrder >= task.ExecutionOrder {
				continue
			}
			if isOptional(other) {
				continue
			}
			if string(other.Status) != want {
				return false
			}
		}
	}

	if raw, ok := conditions["context_variable"].(map[string]any); ok {
		name, _ := raw["name"].(string)
		want := raw["value"]
		ctxVars := map[string]any{}
		if len(task.ContextVariables) > 0 {
			_ = json.Unmarshal(task.ContextVariables, &ctxVars)
		}
		got, present := ctxVars[name]
		if !present || fmt.Sprintf("%v", got) != fmt.Sprintf("%v", want) {
			return false
		}
	}

	// company_data: placeholder predicate, default true.
	// require_approval: treated as satisfied; approval is modelled elsewhere.
	return true
}

// isOptional reports whether task is allowed to fail/skip without failing
// the whole execution. The model carries this forward from
// ProcessTemplateTask into the task's execution_conditions as
// "optional": true at materialisation time, so the engine can read it
// without joining back to the template.
func isOptional(task models.Task) bool {
	conditions := decodeConditions(task)
	optional, _ := conditions["optional"].(bool)
	return optional
}

func decodeConditions(task models.Task) map[string]any {
	conditions := map[string]any{}
	if len(task.ExecutionConditions) > 0 {
		_ = json.Unmarshal(task.ExecutionConditions, &conditions)
	}
	return conditions
}
