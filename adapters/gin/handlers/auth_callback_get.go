package handlers

import (
	"net/http"

	"github.com/PaulFidika/membergate/adapters/ginutil"
	"github.com/PaulFidika/membergate/core"
	"github.com/gin-gonic/gin"
)

// callbackShim moves tokens delivered in the URL fragment into a form POST,
// since fragments never reach the server. Without tokens it posts an empty
// form and the server falls back to the cookie session.
const callbackShim = `<!doctype html>
<html><head><meta charset="utf-8"><meta name="robots" content="noindex"><title>Signing you in…</title></head>
<body><p>Signing you in…</p>
<form id="f" method="POST" action="/auth/callback">
<input type="hidden" name="access_token"><input type="hidden" name="refresh_token">
</form>
<script>
(function () {
  var h = new URLSearchParams(window.location.hash.slice(1));
  var f = document.getElementById("f");
  f.access_token.value = h.get("access_token") || "";
  f.refresh_token.value = h.get("refresh_token") || "";
  history.replaceState(null, "", window.location.pathname);
  f.submit();
})();
</script>
<noscript><form method="POST" action="/auth/callback"><button>Continue</button></form></noscript>
</body></html>`

// HandleAuthCallbackGET handles GET /auth/callback. A ?code is exchanged
// right away; anything else gets the fragment shim.
func HandleAuthCallbackGET(env *Env, rl ginutil.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ginutil.AllowNamed(c, rl, ginutil.RLCallback) {
			ginutil.TooMany(c)
			return
		}
		code := c.Query("code")
		if code == "" && c.Query("error") != "" {
			env.log().WithField("provider_error", c.Query("error_description")).Warn("provider returned an error to the callback")
			c.Redirect(http.StatusSeeOther, env.Svc.Config().LoginPath+"?error="+core.TagCallbackCode)
			return
		}
		if code == "" {
			c.Header("Cache-Control", "no-store")
			c.Header("Referrer-Policy", "no-referrer")
			c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(callbackShim))
			return
		}
		in := core.CallbackInput{
			Code:         code,
			CodeVerifier: takeFlowVerifier(c, env),
			Existing:     ginutil.CurrentSession(c),
		}
		finishCallback(c, env, in)
	}
}

// takeFlowVerifier pops the PKCE verifier stored when the flow started.
func takeFlowVerifier(c *gin.Context, env *Env) string {
	id, _ := c.Cookie(ginutil.CookieFlow)
	if id == "" || env.Flows == nil {
		return ""
	}
	env.Cookies.ClearFlow(c)
	st, ok, err := env.Flows.Get(c.Request.Context(), id)
	if err != nil {
		env.log().WithError(err).Warn("flow cache read failed")
		return ""
	}
	_ = env.Flows.Del(c.Request.Context(), id)
	if !ok {
		return ""
	}
	return st.Verifier
}

func finishCallback(c *gin.Context, env *Env, in core.CallbackInput) {
	in.IP = c.ClientIP()
	in.UserAgent = c.Request.UserAgent()
	res := env.Svc.Callback.Handle(c.Request.Context(), in)
	if res.ErrorTag != "" {
		if res.FailedStep != core.StepEnsuringProfile {
			env.Cookies.ClearSession(c)
		}
	} else {
		env.Cookies.SetSession(c, res.Session)
	}
	c.Header("Cache-Control", "no-store")
	c.Redirect(http.StatusSeeOther, res.Redirect)
}
