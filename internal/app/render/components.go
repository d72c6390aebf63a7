package render

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/a-h/templ"
)

// RowsComponent renders rows back to back, without the surrounding tbody.
func RowsComponent(rows []Row) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		for _, row := range rows {
			if err := RowComponent(row).Render(ctx, w); err != nil {
				return err
			}
		}
		return nil
	})
}

func BodyComponent(rows []Row) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<tbody>`); err != nil {
			return err
		}
		if err := RowsComponent(rows).Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, `</tbody>`)
		return err
	})
}

func TextComponent(rows []Row) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "#\tUSERNAME")
		fmt.Fprintln(tw, "-\t--------")
		for _, row := range rows {
			fmt.Fprintf(tw, "%d\t%s\n", row.Label, row.Username)
		}
		return tw.Flush()
	})
}

func JSONComponent(rows []Row) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]interface{}{"rows": rows})
	})
}

// PageComponent renders the full user list page: the #username input, the two
// actions and the table body as it currently stands.
func PageComponent(t *Table) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, pageHead); err != nil {
			return err
		}
		if err := BodyComponent(t.Rows()).Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, pageTail)
		return err
	})
}

const pageHead = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Users</title></head>
<body>
<form id="add-user" method="post" action="/actions/add-user">
<input id="username" name="username" type="text">
<button type="submit">Add</button>
</form>
<form id="get-users" method="post" action="/actions/get-users">
<button type="submit">Load users</button>
</form>
<table>
<thead><tr><th scope="col">#</th><th scope="col">Username</th></tr></thead>
`

const pageTail = `
</table>
<script>
(function() {
  function send(form) {
    fetch(form.action, {method: "POST", body: new URLSearchParams(new FormData(form))});
  }
  document.querySelectorAll("form").forEach(function(form) {
    form.addEventListener("submit", function(e) { e.preventDefault(); send(form); });
  });
  var proto = location.protocol === "https:" ? "wss://" : "ws://";
  function connect() {
    var ws = new WebSocket(proto + location.host + "/live");
    ws.onmessage = function(e) {
      var msg = JSON.parse(e.data);
      var body = document.querySelector("tbody");
      if (msg.type === "replace") body.innerHTML = msg.html;
      if (msg.type === "append") body.insertAdjacentHTML("beforeend", msg.html);
    };
    ws.onclose = function() { setTimeout(connect, 2000); };
  }
  connect();
})();
</script>
</body>
</html>
`
