package model

// Owner identifies who a website belongs to: a registered user or an
// anonymous visitor token. Exactly one side is ever set; the zero value
// means unowned and is rejected by the store.
type Owner struct {
	userID       int64
	visitorToken string
}

func OwnerUser(id int64) Owner {
	return Owner{userID: id}
}

func OwnerVisitor(token string) Owner {
	return Owner{visitorToken: token}
}

func (o Owner) IsUser() bool {
	return o.userID != 0
}

func (o Owner) IsVisitor() bool {
	return o.userID == 0 && o.visitorToken != ""
}

func (o Owner) IsZero() bool {
	return o.userID == 0 && o.visitorToken == ""
}

// UserID returns the owning user id, valid only when IsUser.
func (o Owner) UserID() int64 {
	return o.userID
}

// VisitorToken returns the owning token value, valid only when IsVisitor.
func (o Owner) VisitorToken() string {
	return o.visitorToken
}
