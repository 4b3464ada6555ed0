package main

import (
	"go.uber.org/zap"
)

func newLogger(debug bool) *zap.Logger {
	if debug {
		log, err := zap.NewDevelopment()
		if err != nil {
			return zap.NewNop()
		}
		return log
	}

	log, err := zap.NewProduction()
	if err != nil {
		return zap.NewNop()
	}
	return log
}
