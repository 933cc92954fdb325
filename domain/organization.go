package domain

// Fallback sentinels substituted when organization resolution exhausts every
// source. Downstream consumers keep working against these instead of blocking
// on an undefined organization; the substitution is always logged.
const (
	FallbackOrgID   = "default-org-id"
	FallbackOrgSlug = "default-org"
)

// OrgSource identifies which rung of the fallback chain produced the context.
type OrgSource string

const (
	OrgSourceMetadata OrgSource = "metadata"
	OrgSourceLookup   OrgSource = "lookup"
	OrgSourceFallback OrgSource = "fallback"
)

// OrgContext is the organization identity owned by a session, resolved
// asynchronously and cached back into session metadata.
type OrgContext struct {
	ID     string    `json:"org_id"`
	Slug   string    `json:"org_slug"`
	Source OrgSource `json:"source"`
}

// IsResolved reports whether both fields are populated (sentinels count:
// consumers must never be blocked indefinitely on a missing organization).
func (o OrgContext) IsResolved() bool {
	return o.ID != "" && o.Slug != ""
}

// IsFallback reports whether the context degraded to the sentinel pair.
func (o OrgContext) IsFallback() bool {
	return o.Source == OrgSourceFallback
}

// Organization is a membership record in the backing store.
type Organization struct {
	ID   string `json:"id"`
	Slug string `json:"slug"`
	Name string `json:"name,omitempty"`
}
