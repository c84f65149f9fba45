/*
Package interpreter evaluates the condition and value mini-language used by
templates.

An expression is tokenized, its $variables are resolved against an
environment (ResolveVars), and the tokens are reduced in fixed stages
(Interpret):

 1. direct comparisons between objects are rejected;
 2. objects, arrays and dates absorb their trailing .key, [index] and [a:b]
    accessors;
 3. parentheses are folded innermost first;
 4. function spans "{ Name args... }" call host functions;
 5. leftover arrays collapse to true or false by emptiness;
 6. binary operators are applied level by level:
    ** then * / % then + - then == != then < > <= >= then && then ||.

Every stage returns a new token slice. Failures are *domain.Error values
classified as syntax, reference, type or runtime errors.

Two names are reserved in the environment: "_" (built-ins such as $_.now)
and "historyInstance", under which the engine binds the conversation
history. Expressions reach the latter as $history.
*/
package interpreter
