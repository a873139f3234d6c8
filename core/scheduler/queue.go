package scheduler

import (
	"container/heap"
	"sync"

	"freelance-workflow/core/models"
)

// TaskQueue is a priority queue of tasks waiting for assignment
type TaskQueue struct {
	tasks []*QueuedTask
	mu    sync.Mutex
}

// QueuedTask wraps a task with its heap position
type QueuedTask struct {
	Task  *models.Task
	Index int // For heap.Interface
}

// NewTaskQueue creates a new task queue
func NewTaskQueue() *TaskQueue {
	tq := &TaskQueue{
		tasks: make([]*QueuedTask, 0),
	}
	heap.Init(tq)
	return tq
}

// Enqueue adds a task to the queue
func (tq *TaskQueue) Enqueue(task *models.Task) {
	tq.mu.Lock()
	defer tq.mu.Unlock()

	heap.Push(tq, &QueuedTask{Task: task})
}

// PopTask removes and returns the most pressing task, or nil when empty
func (tq *TaskQueue) PopTask() *models.Task {
	tq.mu.Lock()
	defer tq.mu.Unlock()

	if tq.Len() == 0 {
		return nil
	}

	item := heap.Pop(tq).(*QueuedTask)
	return item.Task
}

// Len returns the number of tasks in the queue
func (tq *TaskQueue) Len() int {
	return len(tq.tasks)
}

// Less orders by priority, then deadline, then age
func (tq *TaskQueue) Less(i, j int) bool {
	a, b := tq.tasks[i].Task, tq.tasks[j].Task
	if a.Priority.Rank() != b.Priority.Rank() {
		return a.Priority.Rank() > b.Priority.Rank()
	}
	if !a.Deadline.Equal(b.Deadline) {
		return a.Deadline.Before(b.Deadline)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// Swap swaps two tasks
func (tq *TaskQueue) Swap(i, j int) {
	tq.tasks[i], tq.tasks[j] = tq.tasks[j], tq.tasks[i]
	tq.tasks[i].Index = i
	tq.tasks[j].Index = j
}

// Push implements heap.Interface
func (tq *TaskQueue) Push(x interface{}) {
	n := len(tq.tasks)
	item := x.(*QueuedTask)
	item.Index = n
	tq.tasks = append(tq.tasks, item)
}

// Pop implements heap.Interface
func (tq *TaskQueue) Pop() interface{} {
	old := tq.tasks
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.Index = -1
	tq.tasks = old[0 : n-1]
	return item
}
