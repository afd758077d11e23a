/*
Package syntax parses Razor documents into a single tree of markup, C# and Razor nodes.

	Razor text
	    |
	    v
	+---------+   start tag known   +-----------+
	| parser  | ------------------> | taghelper |
	+---------+      (bind)         |  binder   |
	    |                           +-----------+
	    v
	+---------+
	|  Tree   |  FindInnermostNode, Walk, Directives
	+---------+

Every byte of the source belongs to exactly one leaf, so the concatenation of the leaves in
document order reproduces the input. Malformed input never stops the parser; the offending
text still ends up in the tree and a diagnostic is recorded on the Tree.

C# is not parsed. Code blocks, statements and expressions are scanned far enough to find their
end (strings, comments and bracket nesting are respected) and to find markup embedded at
statement positions.
*/
package syntax
