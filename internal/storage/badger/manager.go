package badger

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/insiderlens/internal/common"
	"github.com/ternarybob/insiderlens/internal/interfaces"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db           *BadgerDB
	queue        interfaces.QueueStorage
	analysis     interfaces.AnalysisStorage
	macro        interfaces.MacroStorage
	notification interfaces.NotificationStorage
	subscriber   interfaces.SubscriberStorage
	kv           interfaces.KeyValueStorage
	logger       arbor.ILogger
}

// ManagerOption configures the storage manager
type ManagerOption func(*Manager)

// WithMaxRetries sets the retry budget stamped on newly enqueued jobs
func WithMaxRetries(n int) ManagerOption {
	return func(m *Manager) {
		if q, ok := m.queue.(*QueueStorage); ok && n >= 0 {
			q.maxRetries = n
		}
	}
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.BadgerConfig, opts ...ManagerOption) (interfaces.StorageManager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := newManager(db, logger)
	for _, opt := range opts {
		opt(manager)
	}
	logger.Info().Str("path", config.Path).Msg("Badger storage manager initialized")
	return manager, nil
}

func newManager(db *BadgerDB, logger arbor.ILogger) *Manager {
	return &Manager{
		db:           db,
		queue:        NewQueueStorage(db, logger),
		analysis:     NewAnalysisStorage(db, logger),
		macro:        NewMacroStorage(db, logger),
		notification: NewNotificationStorage(db, logger),
		subscriber:   NewSubscriberStorage(db, logger),
		kv:           NewKVStorage(db, logger),
		logger:       logger,
	}
}

// QueueStorage returns the Queue storage interface
func (m *Manager) QueueStorage() interfaces.QueueStorage {
	return m.queue
}

// AnalysisStorage returns the Analysis storage interface
func (m *Manager) AnalysisStorage() interfaces.AnalysisStorage {
	return m.analysis
}

// MacroStorage returns the Macro storage interface
func (m *Manager) MacroStorage() interfaces.MacroStorage {
	return m.macro
}

// NotificationStorage returns the Notification storage interface
func (m *Manager) NotificationStorage() interfaces.NotificationStorage {
	return m.notification
}

// SubscriberStorage returns the Subscriber storage interface
func (m *Manager) SubscriberStorage() interfaces.SubscriberStorage {
	return m.subscriber
}

// KeyValueStorage returns the KeyValue storage interface
func (m *Manager) KeyValueStorage() interfaces.KeyValueStorage {
	return m.kv
}

// DB returns the underlying database connection
func (m *Manager) DB() interface{} {
	if m.db != nil {
		return m.db.Store()
	}
	return nil
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
