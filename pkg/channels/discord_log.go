package channels

import (
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/tinyland-inc/markovrelay/pkg/logger"
)

var bridgeOnce sync.Once

// InstallLogBridge routes discordgo's internal logging into the logger and
// sets the session verbosity from the current log level.
func InstallLogBridge(s *discordgo.Session) {
	bridgeOnce.Do(func() {
		discordgo.Logger = discordgoLog
	})
	s.LogLevel = SessionLogLevel(logger.GetLevel())
}

func discordgoLog(msgL, caller int, format string, a ...any) {
	fields := map[string]any{"source": "discordgo"}
	msg := fmt.Sprintf(format, a...)
	switch msgL {
	case discordgo.LogError:
		logger.ErrorCF("discord", msg, fields)
	case discordgo.LogWarning:
		logger.WarnCF("discord", msg, fields)
	case discordgo.LogInformational:
		logger.InfoCF("discord", msg, fields)
	default:
		logger.DebugCF("discord", msg, fields)
	}
}

// SessionLogLevel maps our level onto discordgo's.
func SessionLogLevel(l logger.LogLevel) int {
	switch {
	case l <= logger.DEBUG:
		return discordgo.LogDebug
	case l == logger.INFO:
		return discordgo.LogInformational
	case l == logger.WARN:
		return discordgo.LogWarning
	}
	return discordgo.LogError
}
