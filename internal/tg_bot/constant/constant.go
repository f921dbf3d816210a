package constant

const (
	EMOJI_GREEN_CIRCLE = "\U0001F7E2" //🟢
	EMOJI_WHITE_CIRCLE = "\U000026AA" //⚪

	EMOJI_POLICY_RESTRICTED = EMOJI_GREEN_CIRCLE
	EMOJI_POLICY_DEFAULT    = EMOJI_WHITE_CIRCLE

	COMMAND_START = "/start"

	TEXT_CHOOSE_DEVICE     = "Выберите устройство:"
	TEXT_CALL_START        = "Вызови " + COMMAND_START
	TEXT_POLICY_CHANGED    = "Политика для устройства %s изменена на %s"
	TEXT_POLICY_NOT_CHANGE = "Не удалось изменить политику"
)
