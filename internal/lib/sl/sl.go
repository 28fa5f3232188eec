// Package sl собирает логгер сервисов учёта и общие атрибуты slog.
package sl

import "log/slog"

// Err атрибут "error" с текстом ошибки; для nil значение пустое.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}
