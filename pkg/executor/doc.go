/*
Package executor runs shell commands on the control machine or on cluster
hosts and captures their output.

A Target is either Local() or Host(name). Shell runs local commands with
"sh -c" and reaches hosts through the provisioning tool's remote shell
("docker-machine ssh <host> <command>" by default, "limactl shell" for Lima).
SSH dials hosts directly with golang.org/x/crypto/ssh using the machine key
docker-machine generated, which avoids one process per remote command.

Output is untrusted text: callers parse lines and fields themselves. A
non-zero exit is reported as *ExecutionError carrying the command, captured
stdout and stderr, and the exit code. Executors never retry.

The executortest subpackage provides a scripted fake for tests.
*/
package executor
