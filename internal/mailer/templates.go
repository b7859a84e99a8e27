package mailer

// HTML templates ported from the dashboard's transactional emails.
// Placeholders use {{name}}-style tokens substituted with strings.Replace.

const welcomeTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>Welcome to Dexbit</title>
</head>
<body style="margin:0;padding:0;background-color:#0b0e14;font-family:Arial,Helvetica,sans-serif;color:#e6e8ee;">
  <table role="presentation" width="100%" cellpadding="0" cellspacing="0" style="max-width:600px;margin:0 auto;">
    <tr>
      <td style="padding:32px 24px 16px;text-align:center;">
        <h1 style="margin:0;font-size:24px;color:#facc15;">Dexbit</h1>
      </td>
    </tr>
    <tr>
      <td style="padding:16px 24px;">
        <h2 style="margin:0 0 12px;font-size:20px;">Welcome aboard, {{name}}!</h2>
        <p style="margin:0 0 16px;line-height:1.6;color:#aab0bf;">{{intro}}</p>
        <p style="margin:0 0 16px;line-height:1.6;color:#aab0bf;">
          Your trading toolkit is ready: build a watchlist, follow live prices,
          and keep up with market news — all in one place.
        </p>
        <p style="margin:24px 0;text-align:center;">
          <a href="{{dashboardUrl}}" style="background-color:#facc15;color:#0b0e14;padding:12px 28px;border-radius:6px;text-decoration:none;font-weight:bold;">Open your dashboard</a>
        </p>
      </td>
    </tr>
    <tr>
      <td style="padding:16px 24px 32px;text-align:center;color:#5b6170;font-size:12px;">
        You are receiving this email because you signed up for Dexbit.
      </td>
    </tr>
  </table>
</body>
</html>`

const newsSummaryTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>Market News Summary</title>
</head>
<body style="margin:0;padding:0;background-color:#0b0e14;font-family:Arial,Helvetica,sans-serif;color:#e6e8ee;">
  <table role="presentation" width="100%" cellpadding="0" cellspacing="0" style="max-width:600px;margin:0 auto;">
    <tr>
      <td style="padding:32px 24px 8px;text-align:center;">
        <h1 style="margin:0;font-size:24px;color:#facc15;">Dexbit News</h1>
        <p style="margin:8px 0 0;color:#5b6170;font-size:13px;">Market summary for {{date}}</p>
      </td>
    </tr>
    <tr>
      <td style="padding:16px 24px;">
        {{newsContent}}
      </td>
    </tr>
    <tr>
      <td style="padding:16px 24px 32px;text-align:center;color:#5b6170;font-size:12px;">
        Delivered daily by Dexbit. Manage email preferences in your account settings.
      </td>
    </tr>
  </table>
</body>
</html>`
