package domain

// CanisterLevelInput is one canister reading, from the IoT pipeline or the HTTP endpoint.
type CanisterLevelInput struct {
	MachineID     string `json:"machineId" binding:"required"`
	CanisterLevel *int   `json:"canisterLevel" binding:"required,gte=0,lte=100"`
}

type CanisterCheckResult struct {
	Success        bool           `json:"success"`
	Message        string         `json:"message"`
	RequestID      string         `json:"requestId,omitempty"`
	KitchenUserIDs []string       `json:"kitchenUserIds"`
	Priority       int            `json:"priority,omitempty"`
	Quantity       int            `json:"quantity,omitempty"`
	Notifications  []Notification `json:"-"`
}

// TransitionInput is the shared shape of every lifecycle mutation.
type TransitionInput struct {
	UserID        string   `json:"userId" binding:"required"`
	RequestID     string   `json:"requestId" binding:"required"`
	Latitude      *float64 `json:"latitude" binding:"required,gte=-90,lte=90"`
	Longitude     *float64 `json:"longitude" binding:"required,gte=-180,lte=180"`
	Status        string   `json:"status" binding:"required"`
	DateAndTime   string   `json:"dateAndTime" binding:"required"`
	IsProceedNext *bool    `json:"isProceedNext" binding:"required"`
	Reason        string   `json:"reason"`
}

// Proceed is false when IsProceedNext is unset; validation rejects that case first.
func (in TransitionInput) Proceed() bool {
	return in.IsProceedNext != nil && *in.IsProceedNext
}

type TransitionResult struct {
	Success       bool           `json:"success"`
	Message       string         `json:"message"`
	Request       *Request       `json:"request,omitempty"`
	Notifications []Notification `json:"-"`
}

type DeclineInput struct {
	UserID    string `json:"userId" binding:"required"`
	RequestID string `json:"requestId" binding:"required"`
	Status    string `json:"status" binding:"required"`
	Reason    string `json:"reason"`
}

type ReassignResult struct {
	Success       bool           `json:"success"`
	Message       string         `json:"message"`
	NewKitchens   []string       `json:"newKitchens"`
	Notifications []Notification `json:"-"`
}
