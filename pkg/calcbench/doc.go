/*
Package calcbench provides a Go interface for testing containerized calculator services side by side.

A [Harness] is created from a list of services, which can most easily be read from a repository list using [ParseServices].
Every service is a git repository with a Dockerfile at its root. For each service, the harness runs the following pipeline:
  - Prepare a workspace directory and clone the repository into it
  - Build a docker image from the cloned repository and start a container from it
  - Wait for the service to answer GET /healthcheck
  - Submit every [TestCase] of [DefaultTestCases] to POST /calc concurrently, each raced against a fixed deadline

All pipelines run concurrently and a failing service never affects the others.
Once every pipeline is done, the containers of all services are killed and [Harness.Run] returns a [Report].

The [Report] can be rendered as a pipe-delimited comparison table using [Report.WriteTable], where every test case gets one row
and every service which completed its pipeline one column:

	test-name|service-a|service-b
	fraction-sum|+|-
	long|T|+

A + marks a passed test, a - a failed one and a T a test which timed out.
*/
package calcbench
