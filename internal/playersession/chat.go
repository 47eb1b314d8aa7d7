package playersession

// ChatType selects how a CHAT/WHISPER command's text is routed (§6).
type ChatType uint8

const (
	ChatSay ChatType = iota
	ChatYell
	ChatWhisper
	ChatGroup
	ChatFaction
	ChatSystem
	ChatEmote
	ChatOOC
	ChatBroadcast
)

// ChatRoute describes where a chat message's text ends up: nobody outside
// the object graph's own broadcast helpers needs more than this.
type ChatRoute struct {
	Type     ChatType
	District bool // true: route to district.BroadcastDistrict
	Global   bool // true: route to graph.BroadcastAll
	Named    bool // true: route only to explicitly named recipients (whisper, group, faction)
}

// RouteFor maps a chat type to its delivery scope.
func RouteFor(t ChatType) ChatRoute {
	switch t {
	case ChatSay, ChatEmote, ChatYell:
		return ChatRoute{Type: t, District: true}
	case ChatWhisper, ChatGroup, ChatFaction:
		return ChatRoute{Type: t, Named: true}
	case ChatSystem, ChatBroadcast, ChatOOC:
		return ChatRoute{Type: t, Global: true}
	default:
		return ChatRoute{Type: t, District: true}
	}
}
