package domains

// ContainerRecord represents one container as seen by the runtime or the hub.
// RuntimeID is the join key between the two; HubUUID is only set on records
// that came back from the hub.
type ContainerRecord struct {
	RuntimeID string `json:"id"`
	HubUUID   string `json:"uuid,omitempty"`
	Image     string `json:"image"`
	Command   string `json:"command"`
	CreatedAt string `json:"created"`
	Ports     string `json:"ports"`
	Name      string `json:"name"`
}

// RegisteredOnHub reports whether the record carries a hub-assigned id
func (c ContainerRecord) RegisteredOnHub() bool {
	return c.HubUUID != ""
}
