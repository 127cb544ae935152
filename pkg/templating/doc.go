/*
Package templating renders the site's HTML through html/template.

The engine ships with embedded default templates for route pages and for the
shared navigation and footer blocks. Full page templates use the
".tmpl.html" suffix and partials the ".part.html" suffix; a template
directory can be configured whose files replace embedded templates of the
same name, and Refresh reloads them without restarting the process.

Blocks rendered on their own through RenderBlock produce exactly the markup
that the page templates embed, which is what lets the bulk rewriter swap a
stale block for the current one and converge on the generated output.
*/
package templating
