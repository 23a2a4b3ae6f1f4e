package dto

import "github.com/hugh/ash-erp/internal/limits"

// LimitsResponse flattens the usage report next to the success flag.
type LimitsResponse struct {
	Success bool `json:"success"`
	*limits.Report
}

type LimitCheckRequest struct {
	Operation string `json:"operation"`
	SizeBytes int64  `json:"size_bytes"`
}

func (r LimitCheckRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Operation == "" {
		errors["operation"] = "Operation is required"
	} else if _, err := limits.ParseOperation(r.Operation); err != nil {
		errors["operation"] = "Operation must be one of CREATE_USER, CREATE_ORDER, UPLOAD_FILE"
	}
	if r.SizeBytes < 0 {
		errors["size_bytes"] = "Size must not be negative"
	}

	return errors
}

type LimitCheckResponse struct {
	Success   bool   `json:"success"`
	Operation string `json:"operation"`
	Allowed   bool   `json:"allowed"`
	Warning   string `json:"warning,omitempty"`
	Message   string `json:"message,omitempty"`
	Dimension string `json:"dimension,omitempty"`
	Current   *int64 `json:"current,omitempty"`
	Max       *int64 `json:"max,omitempty"`
}

func NewLimitCheckResponse(d limits.Decision) LimitCheckResponse {
	resp := LimitCheckResponse{
		Success:   true,
		Operation: string(d.Operation()),
		Allowed:   d.Allowed(),
		Warning:   d.Warning(),
	}
	if denial := d.Denial(); denial != nil {
		current, max := denial.Current, denial.Max
		resp.Message = denial.Message
		resp.Dimension = string(denial.Dimension)
		resp.Current = &current
		resp.Max = &max
	}
	return resp
}
