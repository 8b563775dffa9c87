package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New builds the JSON logger used across the ledger services. The level
// string follows logrus conventions ("debug", "info", "warn", "error");
// anything unparseable falls back to info.
func New(level string) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)
	return logger
}
