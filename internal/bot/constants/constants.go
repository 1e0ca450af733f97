package constants

const (
	// Commands.
	WarningsCommandName    = "warnings"
	CasesCommandName       = "cases"
	ParseCommandName       = "parse"
	DiagnosticsCommandName = "diagnostics"
	AccessCodeCommandName  = "accesscode"
	LocationsCommandName   = "locations"

	// Warnings subcommands.
	WarningsListSubcommand   = "list"
	WarningsRemoveSubcommand = "remove"

	// Command options.
	MemberOptionName   = "member"
	DaysOptionName     = "days"
	ReasonOptionName   = "reason"
	LineOptionName     = "line"
	LocationOptionName = "location"
	CaseOptionName     = "case"

	// Modal inputs.
	CustomReasonInputCustomID = "custom_reason_input"

	// Embed colors.
	AlertEmbedColor   = 0xE67E22
	ClosedEmbedColor  = 0x95A5A6
	OnlineEmbedColor  = 0x2ECC71
	OfflineEmbedColor = 0xE74C3C
	AuditEmbedColor   = 0x3498DB

	// Display limits.
	WarningsListLimit = 25
	CasesListLimit    = 10
)
