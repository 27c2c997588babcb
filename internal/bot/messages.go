package bot

// User error messages (user mistakes, shown directly)
const (
	MsgCiteUsage        = "Попробуй так: /cite Сообщение (c) Вася"
	MsgCiteRepliesOnly  = "Я умею цитировать только реплаи, сорян\nМожешь зафорвардить сообщение мне в личку"
	MsgReplyHasNoText   = "В этом сообщении нет текста, цитировать нечего"
	MsgGetUsage         = "Использование: /get <номер>"
	MsgCitationNotFound = "Нет такой цитаты"
	MsgNoCitations      = "Цитат пока нет"
	MsgSearchUsage      = "Использование: /search <текст>"
	MsgSearchTooShort   = "Слишком короткий запрос, нужно хотя бы 3 символа"
	MsgNothingFound     = "Ничего не нашёл"
	MsgContextUsage     = "Использование: /context <номер> <текст>"
	MsgCommentLocked    = "У этой цитаты уже есть ссылка на оригинал, контекст не поменять"
	MsgBanUsage         = "Ответь командой на сообщение того, кого нужно забанить"
	MsgUnbanUsage       = "Ответь командой на сообщение того, кого нужно разбанить"
	MsgCannotBanBot     = "Ботов не баню"
	MsgNotEnoughAuthors = "Мало авторов для викторины, нужно хотя бы два"
	MsgPollsGroupsOnly  = "Опросы работают только в группах"
	MsgAdminsOnly       = "Это могут только админы"
)

// System error messages (internal errors, hide details from user)
const (
	MsgFmtInternalError  = "Что-то пошло не так: %v"
	MsgFailedSaveCite    = "Не удалось сохранить цитату. Попробуй ещё раз."
	MsgFailedGetCite     = "Не удалось получить цитату. Попробуй ещё раз."
	MsgFailedSearch      = "Не удалось выполнить поиск. Попробуй ещё раз."
	MsgFailedSaveContext = "Не удалось сохранить контекст. Попробуй ещё раз."
	MsgFailedSendPoll    = "Не удалось отправить опрос. Попробуй ещё раз."
	MsgFailedReindex     = "Не удалось сбросить индекс. Попробуй ещё раз."
)

// Access control
const (
	MsgRegistered    = "Ок, погнали"
	MsgWhoAreYou     = "Ты кто? Пришли мне данные ячейки A1 из таблицы 'Data' плез"
	MsgYouAreBanned  = "Тебе сюда нельзя"
	MsgUnknownAuthor = "Some guy"
)

// Poll questions and outcomes
const (
	MsgFmtBanQuestion   = "Баним %s?"
	MsgFmtUnbanQuestion = "Разбаним %s?"
	MsgQuizQuestion     = "Кто это сказал?"
	MsgPollYes          = "Да"
	MsgPollNo           = "Нет"
	MsgFmtBanned        = "%s забанен по решению чата"
	MsgFmtBanRejected   = "%s остаётся. Чат не поддержал бан"
	MsgFmtUnbanned      = "%s разбанен по решению чата"
	MsgFmtUnbanRejected = "%s остаётся в бане"
	MsgReindexed        = "Индекс правок сброшен"
	MsgFmtContextSaved  = "Контекст к цитате #%d сохранён"
	MsgCitationOfTheDay = "Цитата дня:"
	MsgLikeAdded        = "❤️"
	MsgLikeRemoved      = "💔"
)

// successVariants are short acknowledgements picked at random.
var successVariants = []string{
	"Ok",
	"k",
	"Понял, принял",
	"Ладушки",
	"Принято",
	"+",
	"Ладно, ладно",
}
