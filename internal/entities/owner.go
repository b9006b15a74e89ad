package entities

import "encoding/json"

// Owner is the caller that created a link, or nobody for anonymous links.
// The zero value is NoOwner.
type Owner struct {
	id    string
	valid bool
}

// NoOwner returns the owner of an anonymously created link
func NoOwner() Owner {
	return Owner{}
}

// OwnedBy returns an owner referring to the given caller ID
func OwnedBy(id string) Owner {
	return Owner{id: id, valid: true}
}

// OwnerFromCaller maps an optional caller ID to an Owner
func OwnerFromCaller(callerID *string) Owner {
	if callerID == nil || *callerID == "" {
		return NoOwner()
	}
	return OwnedBy(*callerID)
}

// ID returns the owning caller ID and whether there is one
func (o Owner) ID() (string, bool) {
	return o.id, o.valid
}

// IsSet reports whether the link has an owner
func (o Owner) IsSet() bool {
	return o.valid
}

// Permits reports whether callerID may update or delete a link with this owner.
// Anonymous links are immutable: nobody may mutate them.
func (o Owner) Permits(callerID string) bool {
	return o.valid && callerID != "" && o.id == callerID
}

// Ptr returns the owner ID as a nullable value for storage
func (o Owner) Ptr() *string {
	if !o.valid {
		return nil
	}
	id := o.id
	return &id
}

// MarshalJSON encodes the owner as its ID, or null when there is none
func (o Owner) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.Ptr())
}

// UnmarshalJSON decodes an owner ID or null
func (o *Owner) UnmarshalJSON(data []byte) error {
	var id *string
	if err := json.Unmarshal(data, &id); err != nil {
		return err
	}
	*o = OwnerFromCaller(id)
	return nil
}
