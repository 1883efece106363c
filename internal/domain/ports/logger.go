package ports

// Logger - абстракция логирования для сервисов и инфраструктуры.
// Сообщения форматируются в стиле fmt.Printf.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})

	// Fatal выводит критическую ошибку и завершает программу
	Fatal(msg string, args ...interface{})

	// Printf - вывод без уровня (для совместимости с колбэками пакетов pkg/*)
	Printf(format string, args ...interface{})
}
