package hubsim

import "github.com/xDMPx/PyDockMateAgent/app/domains"

// RegisterAgentRequest represents agent registration request
type RegisterAgentRequest struct {
	Version string          `json:"version" validate:"required"`
	Host    HostInfoRequest `json:"host"`
}

// HostInfoRequest describes the registering host
type HostInfoRequest struct {
	Hostname      string `json:"hostname" validate:"required"`
	OS            string `json:"os"`
	DockerVersion string `json:"docker_version"`
}

// RegisterContainerRequest represents container registration request
type RegisterContainerRequest struct {
	ID      string `json:"id" validate:"required"`
	Image   string `json:"image"`
	Command string `json:"command"`
	Created string `json:"created"`
	Ports   string `json:"ports"`
	Name    string `json:"name"`
}

func (r RegisterContainerRequest) record() domains.ContainerRecord {
	return domains.ContainerRecord{
		RuntimeID: r.ID,
		Image:     r.Image,
		Command:   r.Command,
		CreatedAt: r.Created,
		Ports:     r.Ports,
		Name:      r.Name,
	}
}

// RegisterAgentResponse represents registration response
type RegisterAgentResponse struct {
	UUID string `json:"uuid"`
}

// HostResponse maps an agent to its host
type HostResponse struct {
	HostUUID string `json:"host_uuid"`
}

// ContainerResponse is one entry of the host container list
type ContainerResponse struct {
	UUID    string `json:"uuid"`
	ID      string `json:"id"`
	Image   string `json:"image"`
	Command string `json:"command"`
	Created string `json:"created"`
	Ports   string `json:"ports"`
	Name    string `json:"name"`
}

func containerResponse(rec domains.ContainerRecord) ContainerResponse {
	return ContainerResponse{
		UUID:    rec.HubUUID,
		ID:      rec.RuntimeID,
		Image:   rec.Image,
		Command: rec.Command,
		Created: rec.CreatedAt,
		Ports:   rec.Ports,
		Name:    rec.Name,
	}
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details,omitempty"`
}
