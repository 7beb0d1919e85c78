// Package swarm drives Docker swarm mode through the docker CLI of the
// cluster nodes. Control-plane commands run on the manager a ManagerLocator
// picks; join and leave run on the node itself.
package swarm
