/*
Package storage provides the BoltDB-backed operation journal.

herd keeps no cluster state of its own: node lists and states are always read
back from the provisioner and the swarm. The journal only records what herd
did, so that "herd history" can show which operations ran, how they ended
and which nodes they touched.

# Layout

The journal lives in <state-dir>/herd.db:

	operations   <start-unix-nano>-<uuid>  → Operation (JSON)
	events       <operation uuid>/         → nested bucket
	               <sequence>              → events.Event (JSON)

Keys sort chronologically, so ListOperations walks the cursor backwards to
return the newest operations first.

# Locking

bbolt takes an exclusive flock on the database file while it is open for
writing. NewBoltJournal waits Options.Timeout for the lock and then fails
with ErrLocked, which makes the journal an advisory lock between herd
invocations on the same control machine. Invocations from two different
control machines are not serialized.

Read-only opens take a shared lock and never create the file:

	j, err := storage.NewBoltJournal(dir, storage.Options{ReadOnly: true})
	if errors.Is(err, os.ErrNotExist) {
		// nothing recorded yet
	}
*/
package storage
