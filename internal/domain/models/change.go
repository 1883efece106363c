package models

// Priority определяет порядок применения изменений настроек устройства.
type Priority int

const (
	PriorityNormal    Priority = 0 // Уведомления и прочие безопасные настройки
	PriorityClock     Priority = 1 // Часовой пояс (влияет на коды TOTP)
	PriorityTransport Priority = 2 // Автоматизация USB/BT (может переподключить HID, строго в конце)
)

// Change - одно изменение настройки устройства.
type Change struct {
	ID          string      // Ключ настройки: timezone, notification, automation, keyboardLayout
	Description string      // Человекочитаемое описание
	OldValue    interface{} // Значение на устройстве
	NewValue    interface{} // Желаемое значение
	Priority    Priority
}
