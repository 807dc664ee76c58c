package notice

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TargetAudience is the visibility rule embedded in every notice. When
// IsGlobal is set the other fields are ignored for matching.
type TargetAudience struct {
	IsGlobal    bool     `bson:"isGlobal" json:"isGlobal"`
	Roles       []string `bson:"roles" json:"roles"`
	Departments []string `bson:"departments" json:"departments"`
	Years       []string `bson:"years" json:"years"`
	Courses     []string `bson:"courses" json:"courses"`
}

// GlobalAudience is the permissive fallback applied when a create request
// carries no audience or one that fails to parse.
func GlobalAudience() TargetAudience {
	return TargetAudience{
		IsGlobal:    true,
		Roles:       []string{},
		Departments: []string{},
		Years:       []string{},
		Courses:     []string{},
	}
}

// Viewer carries the attributes of the reader a notice is matched against.
type Viewer struct {
	ID         primitive.ObjectID
	Role       string
	Department string
	Year       string
	Course     string
}

func (v Viewer) IsAdmin() bool { return v.Role == "admin" }

// dimension ties one targeting field to the viewer attribute it matches.
// The pure predicate, the list-visibility query, and the recipient query
// are all compiled from this single table so they cannot drift apart.
type dimension struct {
	field  string
	values func(a TargetAudience) []string
	viewer func(v Viewer) string
}

var dimensions = []dimension{
	{"roles", func(a TargetAudience) []string { return a.Roles }, func(v Viewer) string { return v.Role }},
	{"departments", func(a TargetAudience) []string { return a.Departments }, func(v Viewer) string { return v.Department }},
	{"years", func(a TargetAudience) []string { return a.Years }, func(v Viewer) string { return v.Year }},
	{"courses", func(a TargetAudience) []string { return a.Courses }, func(v Viewer) string { return v.Course }},
}

// Matches reports whether the notice is visible to the viewer: global
// audiences match everyone, otherwise any single dimension hit suffices.
// An empty dimension set never matches, and a viewer with a blank
// attribute cannot match on that dimension.
func (a TargetAudience) Matches(v Viewer) bool {
	if a.IsGlobal {
		return true
	}
	for _, d := range dimensions {
		val := d.viewer(v)
		if val == "" {
			continue
		}
		for _, candidate := range d.values(a) {
			if candidate == val {
				return true
			}
		}
	}
	return false
}

// VisibilityClauses compiles the viewer-side form of Matches: the $or list
// restricting a notices query to documents the viewer may see. Admins get
// no clauses (nil) and bypass audience filtering entirely.
func VisibilityClauses(v Viewer) []bson.M {
	if v.IsAdmin() {
		return nil
	}
	clauses := []bson.M{{"targetAudience.isGlobal": true}}
	for _, d := range dimensions {
		if val := d.viewer(v); val != "" {
			clauses = append(clauses, bson.M{"targetAudience." + d.field: val})
		}
	}
	return clauses
}

// RecipientQuery compiles the audience-side form of Matches: the users
// query selecting the active users this notice should be fanned out to.
func (a TargetAudience) RecipientQuery() bson.M {
	query := bson.M{"isActive": true}
	if a.IsGlobal {
		return query
	}
	var or []bson.M
	for _, d := range dimensions {
		if values := d.values(a); len(values) > 0 {
			or = append(or, bson.M{userField(d.field): bson.M{"$in": values}})
		}
	}
	if len(or) == 0 {
		// Nothing to match: an empty non-global audience reaches nobody.
		query["_id"] = bson.M{"$exists": false}
		return query
	}
	query["$or"] = or
	return query
}

// userField maps a targeting dimension to the corresponding singular user
// attribute field.
func userField(field string) string {
	switch field {
	case "roles":
		return "role"
	case "departments":
		return "department"
	case "years":
		return "year"
	case "courses":
		return "course"
	}
	return field
}
