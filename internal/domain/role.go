package domain

// RoleAdmin is the only role that may read the notification feed.
const RoleAdmin = "admin"
