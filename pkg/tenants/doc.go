// Package tenants manages the organizations participating in the marketplace
// and their projects. A project's impact level bounds which assets it may
// install.
package tenants
