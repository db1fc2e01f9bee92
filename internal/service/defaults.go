package service

import "time"

const (
	defaultSealInterval     = 10 * time.Second
	defaultValidateWorkers  = 4
	defaultHistoryLimit     = 1000
	sleepDuration           = 5 * time.Second
	maxBlockTransactions    = 10_000
	blockBatcherCapacity    = 100
	blockBatcherFlushPeriod = 5 * time.Second
	blockBatcherRPS         = 20
	blockDrainAttempts      = 5
	blockDrainBackoff       = 200 * time.Millisecond
)
