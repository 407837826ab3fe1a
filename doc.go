// obligatory // comment

/*
Package quell provides a small shutdown-broadcast and quiescence-barrier primitive for
long-lived concurrent work, with a focus on minimizing magic.

The pieces fit together like so:

- Group handles and task accounting: [TaskGroup], [New], [StopGuard]
- Reacting to a requested stop: [ShutdownSignal], [Stopped]
- Knowing when everything has finished: [DrainBarrier]
- Running work with the bookkeeping wired up for you: [Spawn], [Handle], [Default]

The intended shape of a program using this package: every long-lived worker is spawned through a
TaskGroup, each worker's main loop selects its useful work against a held [ShutdownSignal], and the
shutdown path calls [TaskGroup.Stop] and then waits on a [DrainBarrier] before finalizing state and
exiting.

# Groups and guards

A [TaskGroup] is a cheap, shareable handle over one piece of shared state: a live-task counter, a
one-way "drained" latch, and a registry of shutdown-signal subscribers. Registering a task (via
[TaskGroup.Add] or [TaskGroup.Spawn]) increments the counter and hands back a [StopGuard]; releasing
the guard is the only way the counter decreases. The decrement that takes the counter from one to
zero flips the drained latch, exactly once, and the latch never reverts - a TaskGroup is spent after
it drains.

Guard release is the correctness anchor: if any task skips its release, the group never drains and
every DrainBarrier waits forever. [TaskGroup.Spawn] arranges release on every exit path, including
panics; if you use [TaskGroup.Add] directly, `defer guard.Release()` immediately.

# Stop has no memory

[TaskGroup.Stop] wakes the shutdown signals subscribed at the moment of the call, exactly once, and
records nothing. A [ShutdownSignal] created after Stop returns will not observe that earlier stop;
it resolves on a later Stop, or when the group drains. Subscribe before you need the guarantee -
typically by creating the signal at spawn time, not inside the spawned task.

# Waiting

Both [ShutdownSignal] and [DrainBarrier] expose their terminal event as a channel, so you can
select over them, plus a context-aware Wait. Once resolved they stay resolved; polling a resolved
signal or barrier any number of times is fine.
*/
package quell
