package lb

import "fmt"

// PortRange is an inclusive port range.
type PortRange struct {
	From int32
	To   int32
}

// Port is a single-port range.
func Port(p int32) PortRange { return PortRange{From: p, To: p} }

// Ports is the range from..to.
func Ports(from, to int32) PortRange { return PortRange{From: from, To: to} }

func (r PortRange) valid() bool {
	return validPort(r.From) && validPort(r.To) && r.From <= r.To
}

func (r PortRange) String() string {
	if r.From == r.To {
		return fmt.Sprintf("%d", r.From)
	}
	return fmt.Sprintf("%d-%d", r.From, r.To)
}

func validPort(p int32) bool { return p >= 1 && p <= 65535 }

// SecurityGroup is either a group created by the graph or an existing group
// referenced by ID.
type SecurityGroup struct {
	id     string
	handle *Handle
}

// SecurityGroupID references an existing security group.
func SecurityGroupID(id string) *SecurityGroup {
	return &SecurityGroup{id: id}
}

// ID returns the existing group's ID, or "" for a group created by the graph.
func (g *SecurityGroup) ID() string { return g.id }

// Handle returns the graph handle of a created group, or nil.
func (g *SecurityGroup) Handle() *Handle { return g.handle }

// Connectable is a resource that consumes traffic and whose security groups
// must admit the load balancer.
type Connectable interface {
	Connections() *Connections
}

// Grant records that a peer must admit traffic from the owning load
// balancer's security groups on Ports.
type Grant struct {
	Peer  *Connections
	Ports PortRange
}

// Connections groups the security groups of one network consumer. On a load
// balancer it also keeps the grant log, which is materialized into ingress
// records at commit.
type Connections struct {
	scope          *Scope
	path           string
	securityGroups []*SecurityGroup
	grants         []Grant
}

// NewConnections declares a connectable in scope, guarded by groups.
func NewConnections(scope *Scope, id string, groups ...*SecurityGroup) *Connections {
	c := &Connections{scope: scope, path: id, securityGroups: groups}
	scope.connections = append(scope.connections, c)
	return c
}

// Connections lets *Connections satisfy Connectable.
func (c *Connections) Connections() *Connections { return c }

// Path returns the full path of the connectable.
func (c *Connections) Path() string { return c.scope.name + "/" + c.path }

// SecurityGroups returns the guarding security groups.
func (c *Connections) SecurityGroups() []*SecurityGroup {
	return append([]*SecurityGroup(nil), c.securityGroups...)
}

// Grants returns the grant log in request order.
func (c *Connections) Grants() []Grant {
	return append([]Grant(nil), c.grants...)
}

func (c *Connections) grant(peer *Connections, ports PortRange) {
	for _, g := range c.grants {
		if g.Peer == peer && g.Ports == ports {
			return
		}
	}
	c.grants = append(c.grants, Grant{Peer: peer, Ports: ports})
}
