package domain

// User is an actual or internal user decoded from a token or apikey.
type User struct {
	Username string
	Email    string
	FullName string
	Disabled bool
	Groups   []string
	Projects []string
}

// MayAccessProject tests whether the user is allowed to see a project.
//
// A user with no project list at all is unrestricted.
func (u User) MayAccessProject(project string) bool {
	if len(u.Projects) == 0 {
		return true
	}
	for _, p := range u.Projects {
		if p == project {
			return true
		}
	}
	return false
}
