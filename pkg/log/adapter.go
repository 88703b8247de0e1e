package log

import "github.com/sirupsen/logrus"

// StorageLogger implements badger.Logger on top of a logrus entry.
// Badger is chatty at Info level, so Info and Debug are demoted one level.
type StorageLogger struct {
	entry *logrus.Entry
}

// NewStorageLogger wraps entry, tagging every line with the store name.
func NewStorageLogger(entry *logrus.Entry, store string) *StorageLogger {
	return &StorageLogger{entry: entry.WithField("store", store)}
}

func (l *StorageLogger) Errorf(f string, v ...interface{}) { l.entry.Errorf(f, v...) }

func (l *StorageLogger) Warningf(f string, v ...interface{}) { l.entry.Warnf(f, v...) }

func (l *StorageLogger) Infof(f string, v ...interface{}) { l.entry.Debugf(f, v...) }

func (l *StorageLogger) Debugf(f string, v ...interface{}) { l.entry.Tracef(f, v...) }
