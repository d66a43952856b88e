package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FlowLog is an append-only, human-readable log for one account's automation
// flow. One file per flow kind and account, e.g. logs/farm_<accountID>.log.
// It is purely diagnostic; structured logging stays on logrus.
type FlowLog struct {
	mu        sync.Mutex
	path      string
	kind      string
	accountID string
}

// NewFlowLog opens (creating the directory if needed) a flow log for the
// given kind ("farm", "scraper", "post", "checklive") and account.
func NewFlowLog(dir, kind, accountID string) (*FlowLog, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create logs directory: %w", err)
	}
	return &FlowLog{
		path:      filepath.Join(dir, fmt.Sprintf("%s_%s.log", kind, accountID)),
		kind:      kind,
		accountID: accountID,
	}, nil
}

// Printf appends one timestamped line and mirrors it to the global logger.
func (f *FlowLog) Printf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	line := fmt.Sprintf("[%s] [Account %s] %s\n", time.Now().Format(time.RFC3339), f.accountID, msg)

	f.mu.Lock()
	defer f.mu.Unlock()

	file, err := os.OpenFile(f.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		GetLogger().WithError(err).Warn("Failed to append flow log")
	} else {
		file.WriteString(line)
		file.Close()
	}

	GetLogger().WithField("account", f.accountID).WithField("flow", f.kind).Info(msg)
}
