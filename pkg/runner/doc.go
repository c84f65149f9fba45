/*
Package runner implements a line-oriented conversation loop over the engine.

Each input line is a turn naming a template and its variables. The runner
renders it, either with the engine history or inside a session, and hands
the reply back to the IOHandler. History therefore carries over from one
turn to the next.

# Key Components

  - Runner: reads turns, renders them and writes replies until EOF or interrupt.
  - TextHandler: "Template key=value ..." lines for interactive use.
  - JSONHandler: {"template": ..., "env": {...}} lines for scripted use.

# Usage

	r := runner.NewRunner(
		runner.WithSessionID("user-1"),
		runner.WithInputHandler(runner.NewJSONHandler(os.Stdin, os.Stdout)),
	)

	if err := r.Run(ctx, engine); err != nil {
		log.Fatal(err)
	}
*/
package runner
