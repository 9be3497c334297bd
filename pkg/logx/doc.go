// Package logx configures stretchbot's structured logging.
//
// Logger is a small value type on top of zerolog:
//   - console output stays human readable (short timestamp + file:line caller)
//   - file output is JSON lines
//   - an optional chat sink mirrors WARN+ records into a chat (rate limited)
package logx
