package types

// DetouringStatus describes whether the monitoring agent managed to
// inject itself into a child process. These records bypass process
// correlation entirely: they are collected verbatim so a run can be
// audited for children that escaped monitoring.
type DetouringStatus struct {
	ProcessID            uint64 `json:"process_id"`
	ReportStatus         uint32 `json:"report_status"`
	ProcessName          string `json:"process_name"`
	StartApplicationName string `json:"start_application_name"`
	CommandLine          string `json:"command_line,omitempty"`
	NeedsInjection       bool   `json:"needs_injection"`
	Job                  uint64 `json:"job"`
	DisableDetours       bool   `json:"disable_detours"`
	CreationFlags        uint32 `json:"creation_flags"`
	Detoured             bool   `json:"detoured"`
	Error                uint32 `json:"error"`
	// CreateProcessStatusReturn is the return code of the injection
	// attempt around the process-creation call.
	CreateProcessStatusReturn uint32 `json:"create_process_status_return"`
}
