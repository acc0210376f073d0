package hvacapi

const (
	statusActive      = "active"
	commandActivate   = "activate"
	commandDeactivate = "deactivate"
)

// StatusResponse is the body of GET /<room>/status.
type StatusResponse struct {
	Room   string `json:"room,omitempty"`
	Status string `json:"status"`
}

// CommandRequest is the body of POST /<room>/command.
type CommandRequest struct {
	Command string `json:"command"`
}

// CommandName maps an activation to the backend command word.
func CommandName(activate bool) string {
	if activate {
		return commandActivate
	}
	return commandDeactivate
}
