package logger

import (
	"github.com/btcsuite/btclog"
	"github.com/sirupsen/logrus"
)

// Passes logs of btcsuite libraries (neutrino, peer, chain) to logrus.
// Info and below is demoted one level, those libraries are chatty.
type BtcLogger struct {
	log   *logrus.Entry
	level btclog.Level
}

func NewBtcLogger(tag string) (self *BtcLogger) {
	self = new(BtcLogger)
	self.log = NewSublogger(tag)
	self.level = btclog.LevelInfo
	return
}

func (self *BtcLogger) Tracef(format string, params ...interface{}) {
	self.log.Tracef(format, params...)
}

func (self *BtcLogger) Debugf(format string, params ...interface{}) {
	self.log.Tracef(format, params...)
}

func (self *BtcLogger) Infof(format string, params ...interface{}) {
	self.log.Debugf(format, params...)
}

func (self *BtcLogger) Warnf(format string, params ...interface{}) {
	self.log.Warnf(format, params...)
}

func (self *BtcLogger) Errorf(format string, params ...interface{}) {
	self.log.Errorf(format, params...)
}

func (self *BtcLogger) Criticalf(format string, params ...interface{}) {
	self.log.Errorf(format, params...)
}

func (self *BtcLogger) Trace(v ...interface{}) {
	self.log.Trace(v...)
}

func (self *BtcLogger) Debug(v ...interface{}) {
	self.log.Trace(v...)
}

func (self *BtcLogger) Info(v ...interface{}) {
	self.log.Debug(v...)
}

func (self *BtcLogger) Warn(v ...interface{}) {
	self.log.Warn(v...)
}

func (self *BtcLogger) Error(v ...interface{}) {
	self.log.Error(v...)
}

func (self *BtcLogger) Critical(v ...interface{}) {
	self.log.Error(v...)
}

func (self *BtcLogger) Level() btclog.Level {
	return self.level
}

func (self *BtcLogger) SetLevel(level btclog.Level) {
	self.level = level
}
