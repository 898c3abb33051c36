package commands

const (
	CommandSession     = "session"
	CommandLast        = "last"
	CommandLastAlias   = "derniere_session"
	CommandExport      = "export"
	CommandExportAlias = "export_sessions"
	CommandStats       = "stats"
	CommandPing        = "ping"
	CommandStart       = "start"
	CommandHelp        = "help"
)

const (
	msgUnknownCommand = "Unknown command. Send /help for the list."
	msgNoRecord       = "You have no recorded session."
	msgNothingToSend  = "Nothing to export."
	msgNoData         = "No session recorded yet."
	msgLoadFailed     = "Could not read the stored sessions. Please try again later."
	msgStatsFailed    = "Could not compute statistics. Please try again later."
	msgPong           = "pong"
	captionAttachment = "Attachment"
	captionExport     = "All recorded sessions"
)

const msgHelp = `Commands:
/session - log a new session
/last - show your last session
/stats - your statistics and chart (/stats all for every player)
/export - download all recorded sessions
/ping - check the bot is alive`
