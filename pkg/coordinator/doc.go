/*
Package coordinator sequences one discovery-then-dispatch run.

A run moves through a fixed state machine:

	Idle → ValidatingConfig → Discovering → FetchingWeather →
	    Dispatching → Summarizing → {Passed, Failed, Aborted}

Aborts happen in exactly three places: invalid configuration (before any
network activity), an empty reachable set after discovery, or a failed
weather fetch. Per-device push failures never abort the run; they are
absorbed into the tally and reflected in the success ratio.

The success ratio is delivered / reachable. Reachable devices are the
denominator because most of the candidate identifier space is unassigned;
an unreachable identifier is the expected case and must not depress the
metric. The run passes when the ratio meets the configured threshold
(inclusive).

The coordinator never restarts itself. Each invocation is one run;
periodic execution belongs to an external scheduler.
*/
package coordinator
