package domain

// MessageType — тип сообщения по классификации платформы.
type MessageType string

const (
	MessageTypeDefault              MessageType = "DEFAULT"
	MessageTypeRecipientAdd         MessageType = "RECIPIENT_ADD"
	MessageTypeRecipientRemove      MessageType = "RECIPIENT_REMOVE"
	MessageTypeCall                 MessageType = "CALL"
	MessageTypeChannelNameChange    MessageType = "CHANNEL_NAME_CHANGE"
	MessageTypeChannelIconChange    MessageType = "CHANNEL_ICON_CHANGE"
	MessageTypeChannelPinnedMessage MessageType = "CHANNEL_PINNED_MESSAGE"
	MessageTypeUserJoin             MessageType = "USER_JOIN"
	MessageTypeGuildBoost           MessageType = "GUILD_BOOST"
	MessageTypeGuildBoostTier1      MessageType = "GUILD_BOOST_TIER_1"
	MessageTypeGuildBoostTier2      MessageType = "GUILD_BOOST_TIER_2"
	MessageTypeGuildBoostTier3      MessageType = "GUILD_BOOST_TIER_3"
	MessageTypeChannelFollowAdd     MessageType = "CHANNEL_FOLLOW_ADD"
	MessageTypeThreadCreated        MessageType = "THREAD_CREATED"
	MessageTypeReply                MessageType = "REPLY"
	MessageTypeChatInputCommand     MessageType = "CHAT_INPUT_COMMAND"
	MessageTypeThreadStarterMessage MessageType = "THREAD_STARTER_MESSAGE"
	MessageTypeContextMenuCommand   MessageType = "CONTEXT_MENU_COMMAND"
	MessageTypeAutoModerationAction MessageType = "AUTO_MODERATION_ACTION"
	MessageTypePollResult           MessageType = "POLL_RESULT"
)

// числовые коды типов из gateway-пейлоадов платформы
var messageTypeByCode = map[int]MessageType{
	0:  MessageTypeDefault,
	1:  MessageTypeRecipientAdd,
	2:  MessageTypeRecipientRemove,
	3:  MessageTypeCall,
	4:  MessageTypeChannelNameChange,
	5:  MessageTypeChannelIconChange,
	6:  MessageTypeChannelPinnedMessage,
	7:  MessageTypeUserJoin,
	8:  MessageTypeGuildBoost,
	9:  MessageTypeGuildBoostTier1,
	10: MessageTypeGuildBoostTier2,
	11: MessageTypeGuildBoostTier3,
	12: MessageTypeChannelFollowAdd,
	18: MessageTypeThreadCreated,
	19: MessageTypeReply,
	20: MessageTypeChatInputCommand,
	21: MessageTypeThreadStarterMessage,
	23: MessageTypeContextMenuCommand,
	24: MessageTypeAutoModerationAction,
	46: MessageTypePollResult,
}

// ResolveMessageType преобразует числовой код в тип.
// Неизвестные коды деградируют до DEFAULT, а не ошибки.
func ResolveMessageType(code int) MessageType {
	if t, ok := messageTypeByCode[code]; ok {
		return t
	}
	return MessageTypeDefault
}
