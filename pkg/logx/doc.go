// Package logx is remindbot's structured logging layer.
//
// It wraps zerolog with a small value-type Logger so components can carry
// fixed fields (comp=scheduler, note=42) without holding a pointer to the
// live configuration. Outputs:
//   - console (short timestamp and caller)
//   - JSON file
//   - an optional remote sink (the Telegram log chat), filtered by level and
//     rate limited
package logx
