package storage

import "beanScope/internal/model"

// Storage is the sink the run command writes raw logs to.
type Storage interface {
	PutLogBatch(logs []model.LogRecord) error
}
