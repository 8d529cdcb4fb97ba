package core

import "tasktrack/pkg/domain"

type (
	Item            = domain.Item
	Kind            = domain.Kind
	Status          = domain.Status
	Transaction     = domain.Transaction
	TransactionView = domain.TransactionView
	PersistentStore = domain.PersistentStore
)

const (
	KindTask    = domain.KindTask
	KindEpic    = domain.KindEpic
	KindSubtask = domain.KindSubtask
)

const (
	StatusNew        = domain.StatusNew
	StatusInProgress = domain.StatusInProgress
	StatusDone       = domain.StatusDone
)
