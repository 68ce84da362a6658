package dispatcher

// Console lines written by the dispatcher.
const (
	PromptPrefix = "oxo@user:~$ "

	MsgNotFound        = "Command not found: "
	MsgScaffoldDone    = "System: Oxo structure initialized at "
	MsgScaffoldAborted = "FILESYSTEM ERROR: scaffold aborted: "
	MsgBuildBusy       = "System: build already in progress; request ignored"
	MsgScaffoldBusy    = "System: workspace busy (build in progress); scaffold aborted"
	msgBusyFormat      = "System: workspace busy (%s in progress); %s"
	MsgBuildCanceled   = "System: build canceled: "
	MsgQueueDown       = "System: build queue unavailable: "
)

// Lease holder names.
const (
	opScaffold = "scaffold"
	opBuild    = "build"
)

// Commands, matched after trimming and lower-casing.
const (
	CmdScaffold = "create android folder"
	CmdBuild    = "build"
	CmdClear    = "clear"
	CmdHelp     = "help"
	CmdStatus   = "status"
)

var helpLines = []string{
	"Commands:",
	"  " + CmdScaffold + "  recreate the Android project in the workspace",
	"  " + CmdBuild + "                  archive the workspace and submit a remote build",
	"  " + CmdStatus + "                 show whether a build is running and the last result",
	"  " + CmdClear + "                  clear the console",
	"  " + CmdHelp + "                   show this list",
}
