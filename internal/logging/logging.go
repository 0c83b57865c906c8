package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger initializes the zerolog logger with the specified debug mode and output format.
func InitLogger(debug, human bool) {
	zerolog.TimeFieldFormat = time.RFC3339Nano                 // always initialize base logger with timestamp.
	base := zerolog.New(os.Stdout).With().Timestamp().Logger() // initialize base logger.
	if human {
		log.Logger = base.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339Nano,
		}) // select output format.
	} else {
		log.Logger = base // use JSON logger.
	}
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel) // set debug level.
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel) // set info level.
	}
}

// LogRequest logs a received invocation request with structured fields.
func LogRequest(
	clientIP string,
	opcode string,
	inputs []string,
	outputs int,
	activeConns int,
) {
	log.Info().
		Str("event", "request_received").
		Str("client_ip", clientIP).
		Str("protoop", opcode).
		Strs("inputs", inputs).
		Int("outputs", outputs).
		Int("active_connections", activeConns).
		Msg("received invocation")
}

// LogResponse logs a sent response with structured fields.
func LogResponse(
	clientIP string,
	opcode string,
	result string,
	errorCode string,
	duration time.Duration,
	activeConns int,
) {
	e := log.Info()
	if errorCode != "" {
		e = log.Warn()
	}
	e.Str("event", "response_sent").
		Str("client_ip", clientIP).
		Str("protoop", opcode).
		Str("result", result).
		Str("error_code", errorCode).
		Dur("duration", duration).
		Int("active_connections", activeConns).
		Msg("sent response")
}
