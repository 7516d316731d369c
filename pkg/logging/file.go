// Copyright 2025 LiveKit, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/livekit/playsync/pkg/config"
)

// FileLog writes user messages to a rotating file.
type FileLog struct {
	out    *lumberjack.Logger
	logger *zap.Logger
}

func NewFileLog(conf config.UserLogConfig) *FileLog {
	out := &lumberjack.Logger{
		Filename:   conf.Filename,
		MaxSize:    conf.MaxSizeMB,
		MaxBackups: conf.MaxBackups,
		MaxAge:     conf.MaxAgeDays,
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(out),
		zapcore.InfoLevel,
	)

	return &FileLog{
		out:    out,
		logger: zap.New(core),
	}
}

func (l *FileLog) Report(msg string, err error) {
	if err != nil {
		l.logger.Warn(msg, zap.Error(err))
	} else {
		l.logger.Info(msg)
	}
}

func (l *FileLog) Close() error {
	_ = l.logger.Sync()
	return l.out.Close()
}
